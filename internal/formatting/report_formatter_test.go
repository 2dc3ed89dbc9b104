package formatting

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

func TestFormatReportMarkdown(t *testing.T) {
	rep := report.New("Acme", map[string]string{"region": "EMEA", "depth": "snapshot"})
	rep.Set(report.SectionOverview, "Acme makes anvils [2].")
	rep.Set(report.SectionFinancials, "Financials\n\nAutomated fallback summary while the strategy agents retry.")
	rep.Version = 3
	exp := rep.ToExport([]research.Source{
		{Title: "Acme site", URL: "https://acme.com", Type: "web"},
		{Title: "Wiki", URL: "https://wiki/acme", Type: "wikipedia"},
		{Title: "Acme site again", URL: "https://acme.com", Type: "web"},
	})

	md := FormatReportMarkdown(exp)

	assert.True(t, strings.HasPrefix(md, "# Account Plan: Acme\n\n**region:** EMEA · **depth:** snapshot\n\n_Version 3_\n"))
	assert.Contains(t, md, "## Overview\n\nAcme makes anvils [2].\n")
	assert.Contains(t, md, "## Financials\n\nAutomated fallback summary")
	assert.NotContains(t, md, "## Financials\n\nFinancials")
	assert.Contains(t, md, "## Industry\n\n_Not available._\n")
	assert.Contains(t, md, "## Sources\n[1] Acme site (https://acme.com) - web\n[2] Wiki (https://wiki/acme) - wikipedia - Used inline\n")
	assert.NotContains(t, md, "[3]")

	overview := strings.Index(md, "## Overview")
	plan := strings.Index(md, "## 30-60-90 Day Plan")
	assert.True(t, overview < plan)
}

func TestStripHeading(t *testing.T) {
	assert.Equal(t, "body", stripHeading("**SWOT**\nbody", "SWOT"))
	assert.Equal(t, "", stripHeading("News", "News"))
	assert.Equal(t, "News moves fast", stripHeading("News moves fast", "News"))
}

func TestFormatSourcesWithoutTitle(t *testing.T) {
	got := FormatSources([]research.Source{{URL: "https://x.com"}}, nil)
	assert.Equal(t, "[1] https://x.com", got)
}
