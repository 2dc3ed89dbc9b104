package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

func TestDetectSection(t *testing.T) {
	cases := map[string]Section{
		"Update opportunities to focus on healthcare AI": SectionOpportunities,
		"rewrite the 30 60 90 plan":                      "",
		"rewrite the plan 30 60 90 please":               SectionPlan306090,
		"PLAN_30_60_90 needs dates":                      SectionPlan306090,
		"tighten the SWOT":                               SectionSWOT,
		"overview and news both":                         SectionOverview,
	}
	for msg, want := range cases {
		got, ok := DetectSection(msg)
		if want == "" {
			assert.False(t, ok, msg)
			continue
		}
		require.True(t, ok, msg)
		assert.Equal(t, want, got, msg)
	}
}

func TestParseSection(t *testing.T) {
	s, err := ParseSection(" Financials ")
	require.NoError(t, err)
	assert.Equal(t, SectionFinancials, s)

	_, err = ParseSection("appendix")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestReportSetGet(t *testing.T) {
	r := New("Acme", map[string]string{"region": "EMEA"})
	for _, s := range Sections {
		r.Set(s, "  text for "+string(s)+"\n")
	}
	for _, s := range Sections {
		assert.Equal(t, "text for "+string(s), r.Get(s))
	}
	assert.Equal(t, 1, r.Version)
	assert.Equal(t, "", r.Get(Section("appendix")))
}

func TestToExport(t *testing.T) {
	r := New("Acme", nil)
	r.Set(SectionNews, "headline")
	exp := r.ToExport([]research.Source{{URL: "u"}, {URL: "u"}})

	require.Len(t, exp.Sections, len(Sections))
	assert.Equal(t, SectionOverview, exp.Sections[0].ID)
	assert.Equal(t, "headline", exp.Sections[5].Text)
	assert.Len(t, exp.Sources, 1)
}
