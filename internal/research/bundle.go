package research

import (
	"fmt"
	"strings"
)

// Record is one heterogeneous result from a channel lookup.
type Record map[string]any

// String returns the trimmed string form of key, or "" when absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// First returns the first non-empty string among keys.
func (r Record) First(keys ...string) string {
	for _, k := range keys {
		if s := r.String(k); s != "" {
			return s
		}
	}
	return ""
}

// Source attributes a piece of research to where it came from.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// FieldKey identifies a bundle field a channel payload can be merged into.
type FieldKey string

const (
	FieldCompanyName  FieldKey = "company_name"
	FieldWebResults   FieldKey = "web_results"
	FieldNewsResults  FieldKey = "news_results"
	FieldHiringTrends FieldKey = "hiring_trends"
	FieldCompetitors  FieldKey = "competitors"
	FieldLeadership   FieldKey = "leadership"
	FieldRawDocuments FieldKey = "raw_documents"
	FieldConflicts    FieldKey = "conflicts"
	FieldFinancials   FieldKey = "financials"
	FieldSentiment    FieldKey = "sentiment"
	FieldWikiSummary  FieldKey = "wiki_summary"
)

// Bundle aggregates every channel's output for one research cycle.
type Bundle struct {
	CompanyName  string            `json:"company_name"`
	Scope        map[string]string `json:"scope"`
	WebResults   []Record          `json:"web_results"`
	NewsResults  []Record          `json:"news_results"`
	Financials   Record            `json:"financials"`
	HiringTrends []Record          `json:"hiring_trends"`
	Competitors  []Record          `json:"competitors"`
	Leadership   []Record          `json:"leadership"`
	Sentiment    Record            `json:"sentiment"`
	WikiSummary  Record            `json:"wiki_summary"`
	RawDocuments []Record          `json:"raw_documents"`
	Conflicts    []Record          `json:"conflicts"`
	Sources      []Source          `json:"sources"`
	SearchPlan   []SearchTask      `json:"search_plan"`
}

// NewBundle creates an empty bundle holding a copy of scope.
func NewBundle(company string, scope map[string]string) *Bundle {
	snapshot := make(map[string]string, len(scope))
	for k, v := range scope {
		snapshot[k] = v
	}
	return &Bundle{
		CompanyName:  company,
		Scope:        snapshot,
		WebResults:   []Record{},
		NewsResults:  []Record{},
		Financials:   Record{},
		HiringTrends: []Record{},
		Competitors:  []Record{},
		Leadership:   []Record{},
		Sentiment:    Record{},
		WikiSummary:  Record{},
		RawDocuments: []Record{},
		Conflicts:    []Record{},
		Sources:      []Source{},
		SearchPlan:   []SearchTask{},
	}
}

// Merge folds payload into the field named by key. Sequence fields are
// extended (a single payload is wrapped first), mapping fields are updated
// (a non-mapping payload lands under "value"), and the scalar company name is
// overwritten. An empty key or nil payload is a no-op; so is an unknown key.
func (b *Bundle) Merge(key FieldKey, payload any) {
	if key == "" || payload == nil {
		return
	}
	switch key {
	case FieldWebResults:
		b.WebResults = appendRecords(b.WebResults, payload)
	case FieldNewsResults:
		b.NewsResults = appendRecords(b.NewsResults, payload)
	case FieldHiringTrends:
		b.HiringTrends = appendRecords(b.HiringTrends, payload)
	case FieldCompetitors:
		b.Competitors = appendRecords(b.Competitors, payload)
	case FieldLeadership:
		b.Leadership = appendRecords(b.Leadership, payload)
	case FieldRawDocuments:
		b.RawDocuments = appendRecords(b.RawDocuments, payload)
	case FieldConflicts:
		b.Conflicts = appendRecords(b.Conflicts, payload)
	case FieldFinancials:
		b.Financials = updateRecord(b.Financials, payload)
	case FieldSentiment:
		b.Sentiment = updateRecord(b.Sentiment, payload)
	case FieldWikiSummary:
		b.WikiSummary = updateRecord(b.WikiSummary, payload)
	case FieldCompanyName:
		b.CompanyName = fmt.Sprint(payload)
	}
}

// AddSources appends attribution records to the global source list.
func (b *Bundle) AddSources(sources []Source) {
	b.Sources = append(b.Sources, sources...)
}

// DedupeSources removes repeated sources keyed by URL, falling back to title.
// The first occurrence wins and order is preserved; keyless entries are dropped.
func (b *Bundle) DedupeSources() {
	b.Sources = DedupeSources(b.Sources)
}

// DedupeSources returns sources without duplicates. See Bundle.DedupeSources.
func DedupeSources(sources []Source) []Source {
	seen := make(map[string]bool, len(sources))
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		key := strings.TrimSpace(s.URL)
		if key == "" {
			key = strings.TrimSpace(s.Title)
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func appendRecords(dst []Record, payload any) []Record {
	switch p := payload.(type) {
	case []Record:
		return append(dst, p...)
	case []map[string]any:
		for _, m := range p {
			dst = append(dst, Record(m))
		}
		return dst
	case []any:
		for _, item := range p {
			dst = append(dst, toRecord(item))
		}
		return dst
	default:
		return append(dst, toRecord(payload))
	}
}

func updateRecord(dst Record, payload any) Record {
	if dst == nil {
		dst = Record{}
	}
	switch p := payload.(type) {
	case Record:
		for k, v := range p {
			dst[k] = v
		}
	case map[string]any:
		for k, v := range p {
			dst[k] = v
		}
	default:
		dst["value"] = payload
	}
	return dst
}

func toRecord(item any) Record {
	switch v := item.(type) {
	case Record:
		return v
	case map[string]any:
		return Record(v)
	default:
		return Record{"value": item}
	}
}
