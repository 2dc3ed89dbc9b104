package report

import (
	"errors"
	"strings"
)

// ErrUnknownSection is returned when a section identifier is not canonical.
var ErrUnknownSection = errors.New("unknown report section")

// Section identifies one of the canonical report sections.
type Section string

const (
	SectionOverview      Section = "overview"
	SectionIndustry      Section = "industry"
	SectionFinancials    Section = "financials"
	SectionTalent        Section = "talent"
	SectionLeadership    Section = "leadership"
	SectionNews          Section = "news"
	SectionSWOT          Section = "swot"
	SectionOpportunities Section = "opportunities"
	SectionStrategy      Section = "strategy"
	SectionPlan306090    Section = "plan_30_60_90"
)

// Sections lists the canonical sections in synthesis order.
var Sections = []Section{
	SectionOverview,
	SectionIndustry,
	SectionFinancials,
	SectionTalent,
	SectionLeadership,
	SectionNews,
	SectionSWOT,
	SectionOpportunities,
	SectionStrategy,
	SectionPlan306090,
}

var sectionLabels = map[Section]string{
	SectionOverview:      "Overview",
	SectionIndustry:      "Industry",
	SectionFinancials:    "Financials",
	SectionTalent:        "Talent",
	SectionLeadership:    "Leadership",
	SectionNews:          "News",
	SectionSWOT:          "SWOT",
	SectionOpportunities: "Opportunities",
	SectionStrategy:      "Strategy",
	SectionPlan306090:    "30-60-90 Day Plan",
}

// ParseSection resolves a canonical identifier, ignoring case and surrounding space.
func ParseSection(s string) (Section, error) {
	sec := Section(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sectionLabels[sec]; !ok {
		return "", ErrUnknownSection
	}
	return sec, nil
}

// Label is the human-readable section title.
func (s Section) Label() string {
	if l, ok := sectionLabels[s]; ok {
		return l
	}
	return string(s)
}

// aliases are the forms a user might type to name the section.
func (s Section) aliases() []string {
	v := string(s)
	return []string{
		v,
		"section_" + v,
		strings.ReplaceAll(v, "_", " "),
	}
}

// DetectSection scans free text for a section reference. Sections are checked
// in canonical order and the first match wins.
func DetectSection(text string) (Section, bool) {
	lowered := strings.ToLower(text)
	for _, s := range Sections {
		for _, alias := range s.aliases() {
			if strings.Contains(lowered, alias) {
				return s, true
			}
		}
	}
	return "", false
}
