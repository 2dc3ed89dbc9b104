package workflows

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activities"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/lookup"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

const testWorkplan = "**Phase 1: Discovery**\n- Inputs: scope"

// scriptedLLM answers clarification, workplan, routing and section calls.
type scriptedLLM struct {
	mu          sync.Mutex
	needsMore   bool
	sectionText string
	calls       int
	block       chan struct{}
}

func (s *scriptedLLM) Chat(_ context.Context, system string, msgs []llm.Message) (string, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	text := s.sectionText
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	if strings.Contains(system, "Final scope context:") {
		return testWorkplan, nil
	}
	if text == "" {
		text = "section text"
	}
	return text, nil
}

func (s *scriptedLLM) StructuredChat(_ context.Context, _ string, msgs []llm.Message) (map[string]any, error) {
	s.mu.Lock()
	s.calls++
	needsMore := s.needsMore
	s.mu.Unlock()
	if len(msgs) == 1 && strings.Contains(msgs[0].Content, "Return JSON search tasks only") {
		return map[string]any{"search_tasks": []any{
			map[string]any{"channel": "news", "query": "Acme launches", "agent": "News Radar"},
		}}, nil
	}
	return map[string]any{
		"assistant_reply": "Thanks, I have what I need.",
		"scope_updates":   map[string]any{"company": "Acme Corp"},
		"needs_more_info": needsMore,
	}, nil
}

type staticLookup struct{ name string }

func (s staticLookup) Name() string { return s.name }

func (s staticLookup) Lookup(_ context.Context, company string, _ map[string]string, query string) ([]research.Record, error) {
	return []research.Record{{"title": company + " " + s.name, "url": "https://example.com/" + s.name, "content": query}}, nil
}

func (s staticLookup) SourceMetadata(results []research.Record) []research.Source {
	out := make([]research.Source, 0, len(results))
	for _, r := range results {
		out = append(out, research.Source{Title: r.String("title"), URL: r.String("url"), Type: s.name})
	}
	return out
}

func newTestActivities(t *testing.T, collab llm.Collaborator) *activities.Activities {
	t.Helper()
	reg := lookup.Registry{}
	for _, ch := range research.AllChannels {
		reg[ch] = staticLookup{name: string(ch)}
	}
	return activities.NewActivities(collab, nil, reg, activities.Config{}, zaptest.NewLogger(t))
}
