package activities

import (
	"fmt"
	"strings"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/util"
)

const (
	fallbackDisclaimer = "Automated fallback summary while the strategy agents retry."
	fallbackGeneric    = "- Review the Research Feed for supporting evidence from the research agents."
	snippetLimit       = 240
)

// BuildFallback renders deterministic section text from the bundle. It always
// returns text and ends with the failure reason.
func BuildFallback(sec report.Section, bundle *research.Bundle, cause error) string {
	lines := []string{sec.Label(), "", fallbackDisclaimer}
	var highlights []string
	if bundle != nil {
		highlights = sectionHighlights(sec, bundle)
	}
	if len(highlights) > 0 {
		lines = append(lines, highlights...)
	} else {
		lines = append(lines, fallbackGeneric)
	}
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	lines = append(lines, fmt.Sprintf("(Reason: %s)", reason))
	return strings.Join(lines, "\n")
}

func sectionHighlights(sec report.Section, b *research.Bundle) []string {
	switch {
	case sec == report.SectionFinancials && len(b.Financials) > 0:
		var out []string
		if summary := b.Financials.String("summary"); summary != "" {
			out = append(out, "- "+util.Ellipsize(summary, snippetLimit))
		}
		m, _ := b.Financials["metrics"].(map[string]any)
		keys := orderedMetricKeys(m)
		if len(keys) > 4 {
			keys = keys[:4]
		}
		for _, k := range keys {
			out = append(out, fmt.Sprintf("- %s: %v", util.TitleWords(k), m[k]))
		}
		return out

	case sec == report.SectionNews && len(b.NewsResults) > 0:
		return pairs(b.NewsResults, 3, []string{"title"}, "News",
			[]string{"summary", "content"}, "Recent development")

	case sec == report.SectionLeadership && len(b.Leadership) > 0:
		return pairs(b.Leadership, 4, []string{"title", "name"}, "Leader",
			[]string{"focus", "summary", "content"}, "Priority captured in research feed.")

	case sec == report.SectionTalent && len(b.HiringTrends) > 0:
		return pairs(b.HiringTrends, 3, []string{"title", "role"}, "Hiring note",
			[]string{"summary", "content", "description"}, "Hiring insight available.")

	case sec == report.SectionOpportunities && len(b.Competitors) > 0:
		return pairs(b.Competitors, 3, []string{"title", "name"}, "Competitor",
			[]string{"summary", "content"}, "Differentiation angle")
	}

	var out []string
	if snippet := firstSnippet(b); snippet != "" {
		out = append(out, "- "+snippet)
	}
	if coverage := coverageSummary(b); coverage != "" {
		out = append(out, "- Coverage: "+coverage)
	}
	return out
}

// pairs renders "- label: snippet" lines for the first n records.
func pairs(records []research.Record, n int, labelKeys []string, labelDefault string, textKeys []string, textDefault string) []string {
	if len(records) > n {
		records = records[:n]
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		label := util.FirstNonEmpty(util.CleanHTML(r.First(labelKeys...)), labelDefault)
		text := util.FirstNonEmpty(util.CleanHTML(r.First(textKeys...)), textDefault)
		out = append(out, fmt.Sprintf("- %s: %s", label, util.Ellipsize(text, snippetLimit)))
	}
	return out
}

// firstSnippet scans the encyclopedia summary, then web and news results.
func firstSnippet(b *research.Bundle) string {
	var pool []research.Record
	if len(b.WikiSummary) > 0 {
		pool = append(pool, b.WikiSummary)
	}
	pool = append(pool, b.WebResults...)
	pool = append(pool, b.NewsResults...)
	for _, r := range pool {
		if s := r.First("summary", "content", "snippet", "description"); s != "" {
			return util.Ellipsize(s, snippetLimit)
		}
	}
	return ""
}

func coverageSummary(b *research.Bundle) string {
	counts := []struct {
		label string
		n     int
	}{
		{"web", len(b.WebResults)},
		{"news", len(b.NewsResults)},
		{"leaders", len(b.Leadership)},
		{"talent", len(b.HiringTrends)},
		{"competitors", len(b.Competitors)},
	}
	var parts []string
	for _, c := range counts {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", c.label, c.n))
		}
	}
	return strings.Join(parts, ", ")
}
