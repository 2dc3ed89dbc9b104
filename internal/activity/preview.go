package activity

import (
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/util"
)

// MaxPreviewResults bounds the display entries attached to an event.
const MaxPreviewResults = 5

// Preview builds display entries from raw lookup records. The title comes from
// title, name or url; the snippet from textKey, content or summary.
func Preview(records []research.Record, textKey string) []Result {
	keys := []string{"content", "summary"}
	if textKey != "" {
		keys = append([]string{textKey}, keys...)
	}
	out := make([]Result, 0, MaxPreviewResults)
	for _, r := range records {
		if len(out) == MaxPreviewResults {
			break
		}
		title := util.CleanHTML(r.First("title", "name", "url"))
		if title == "" {
			title = "Result"
		}
		out = append(out, Result{
			Title:   title,
			Snippet: util.CleanHTML(r.First(keys...)),
			URL:     r.String("url"),
		})
	}
	return out
}
