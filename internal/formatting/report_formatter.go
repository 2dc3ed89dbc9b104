package formatting

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

var citationRe = regexp.MustCompile(`\[(\d{1,3})\]`)

// scopeOrder lists the brief parameters shown in the header, in order.
var scopeOrder = []string{"region", "segment", "product_focus", "persona_mode", "depth"}

// FormatReportMarkdown renders an exported report as Markdown. Sections appear
// in canonical order and a numbered Sources list closes the document. A source
// referenced inline as [n] in any section is marked as used.
func FormatReportMarkdown(exp report.Export) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Account Plan: %s\n\n", exp.CompanyName)
	if line := scopeLine(exp.Scope); line != "" {
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "_Version %d_\n", exp.Version)

	used := map[int]bool{}
	for _, sec := range exp.Sections {
		body := stripHeading(sec.Text, sec.Label)
		for _, n := range citedIndexes(body) {
			used[n] = true
		}
		fmt.Fprintf(&b, "\n## %s\n\n", sec.Label)
		if body == "" {
			b.WriteString("_Not available._\n")
			continue
		}
		b.WriteString(body)
		b.WriteString("\n")
	}

	if sources := FormatSources(exp.Sources, used); sources != "" {
		b.WriteString("\n## Sources\n")
		b.WriteString(sources)
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSources numbers sources from 1 as "[n] Title (URL) - type". Entries
// whose number appears in used are labelled as cited inline.
func FormatSources(sources []research.Source, used map[int]bool) string {
	lines := make([]string, 0, len(sources))
	for i, s := range sources {
		n := i + 1
		title := s.Title
		if title == "" {
			title = s.URL
		}
		line := fmt.Sprintf("[%d] %s", n, title)
		if s.URL != "" && s.URL != title {
			line += fmt.Sprintf(" (%s)", s.URL)
		}
		if s.Type != "" {
			line += " - " + s.Type
		}
		if used[n] {
			line += " - Used inline"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// citedIndexes returns the distinct [n] markers in text, ascending.
func citedIndexes(text string) []int {
	seen := map[int]bool{}
	var out []int
	for _, m := range citationRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// stripHeading drops a first line that only repeats the section label, as
// fallback text and some generations do.
func stripHeading(text, label string) string {
	text = strings.TrimSpace(text)
	first, rest, found := strings.Cut(text, "\n")
	heading := strings.TrimSpace(strings.TrimLeft(first, "#* "))
	heading = strings.TrimRight(heading, "*: ")
	if strings.EqualFold(heading, label) {
		if !found {
			return ""
		}
		return strings.TrimSpace(rest)
	}
	return text
}

func scopeLine(scope map[string]string) string {
	var parts []string
	for _, k := range scopeOrder {
		if v := strings.TrimSpace(scope[k]); v != "" {
			parts = append(parts, fmt.Sprintf("**%s:** %s", strings.ReplaceAll(k, "_", " "), v))
		}
	}
	return strings.Join(parts, " · ")
}
