package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_WrapsSingleRecord(t *testing.T) {
	b := NewBundle("Acme", nil)
	b.Merge(FieldWebResults, Record{"title": "x"})

	require.Len(t, b.WebResults, 1)
	assert.Equal(t, Record{"title": "x"}, b.WebResults[0])
}

func TestMerge_ExtendsSequence(t *testing.T) {
	b := NewBundle("Acme", nil)
	b.Merge(FieldNewsResults, []Record{{"title": "a"}, {"title": "b"}})
	b.Merge(FieldNewsResults, []any{map[string]any{"title": "c"}, "loose text"})

	require.Len(t, b.NewsResults, 4)
	assert.Equal(t, "c", b.NewsResults[2].String("title"))
	assert.Equal(t, "loose text", b.NewsResults[3].String("value"))
}

func TestMerge_MappingFields(t *testing.T) {
	b := NewBundle("Acme", nil)
	b.Merge(FieldFinancials, Record{"summary": "steady", "symbol": "ACME"})
	b.Merge(FieldFinancials, map[string]any{"symbol": "ACM"})
	b.Merge(FieldSentiment, "positive")

	assert.Equal(t, "steady", b.Financials.String("summary"))
	assert.Equal(t, "ACM", b.Financials.String("symbol"))
	assert.Equal(t, "positive", b.Sentiment["value"])
}

func TestMerge_ScalarAndNoops(t *testing.T) {
	b := NewBundle("Acme", nil)
	b.Merge(FieldCompanyName, "Acme Corp")
	b.Merge("", Record{"title": "ignored"})
	b.Merge(FieldWebResults, nil)
	b.Merge(FieldKey("unknown"), Record{"title": "ignored"})

	assert.Equal(t, "Acme Corp", b.CompanyName)
	assert.Empty(t, b.WebResults)
}

func TestNewBundle_CopiesScope(t *testing.T) {
	scope := map[string]string{"company": "Acme"}
	b := NewBundle("Acme", scope)
	scope["company"] = "Changed"

	assert.Equal(t, "Acme", b.Scope["company"])
}

func TestDedupeSources(t *testing.T) {
	in := []Source{{URL: "a"}, {URL: "a", Title: "x"}, {Title: "y"}, {}}
	out := DedupeSources(in)

	assert.Equal(t, []Source{{URL: "a"}, {Title: "y"}}, out)
}

func TestRecordFirst(t *testing.T) {
	r := Record{"name": " Jane ", "title": "", "count": 3}
	assert.Equal(t, "Jane", r.First("title", "name"))
	assert.Equal(t, "3", r.String("count"))
	assert.Equal(t, "", r.First("missing"))
}
