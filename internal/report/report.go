package report

import (
	"strings"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// Report holds the synthesized account plan.
type Report struct {
	CompanyName   string            `json:"company_name"`
	Scope         map[string]string `json:"scope"`
	Overview      string            `json:"overview"`
	Industry      string            `json:"industry"`
	Financials    string            `json:"financials"`
	Talent        string            `json:"talent"`
	Leadership    string            `json:"leadership"`
	News          string            `json:"news"`
	SWOT          string            `json:"swot"`
	Opportunities string            `json:"opportunities"`
	Strategy      string            `json:"strategy"`
	Plan306090    string            `json:"plan_30_60_90"`
	Version       int               `json:"version"`
}

// New returns an empty version-1 report.
func New(company string, scope map[string]string) *Report {
	snapshot := make(map[string]string, len(scope))
	for k, v := range scope {
		snapshot[k] = v
	}
	return &Report{CompanyName: company, Scope: snapshot, Version: 1}
}

// Get returns the text of a section.
func (r *Report) Get(s Section) string {
	if p := r.field(s); p != nil {
		return *p
	}
	return ""
}

// Set replaces the text of a section. Unknown sections are ignored.
func (r *Report) Set(s Section, text string) {
	if p := r.field(s); p != nil {
		*p = strings.TrimSpace(text)
	}
}

func (r *Report) field(s Section) *string {
	switch s {
	case SectionOverview:
		return &r.Overview
	case SectionIndustry:
		return &r.Industry
	case SectionFinancials:
		return &r.Financials
	case SectionTalent:
		return &r.Talent
	case SectionLeadership:
		return &r.Leadership
	case SectionNews:
		return &r.News
	case SectionSWOT:
		return &r.SWOT
	case SectionOpportunities:
		return &r.Opportunities
	case SectionStrategy:
		return &r.Strategy
	case SectionPlan306090:
		return &r.Plan306090
	}
	return nil
}

// Clone returns a deep copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.Scope = make(map[string]string, len(r.Scope))
	for k, v := range r.Scope {
		c.Scope[k] = v
	}
	return &c
}

// Export is the presentation-facing view of a report.
type Export struct {
	CompanyName string            `json:"company_name"`
	Scope       map[string]string `json:"scope"`
	Sections    []ExportSection   `json:"sections"`
	Version     int               `json:"version"`
	Sources     []research.Source `json:"sources"`
}

// ExportSection is one section in canonical order.
type ExportSection struct {
	ID    Section `json:"id"`
	Label string  `json:"label"`
	Text  string  `json:"text"`
}

// ToExport builds the export view with the bundle's deduplicated sources.
func (r *Report) ToExport(sources []research.Source) Export {
	out := Export{
		CompanyName: r.CompanyName,
		Scope:       r.Scope,
		Version:     r.Version,
		Sources:     research.DedupeSources(sources),
	}
	for _, s := range Sections {
		out.Sections = append(out.Sections, ExportSection{ID: s, Label: s.Label(), Text: r.Get(s)})
	}
	return out
}
