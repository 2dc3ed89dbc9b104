package activities

import (
	"context"
	"errors"
	"sync"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/lookup"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

type fakeLLM struct {
	mu         sync.Mutex
	chat       func(system string, msgs []llm.Message) (string, error)
	structured func(system string, msgs []llm.Message) (map[string]any, error)
	chats      []llm.Message
	systems    []string
}

func (f *fakeLLM) Chat(_ context.Context, system string, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	if len(msgs) > 0 {
		f.chats = append(f.chats, msgs[len(msgs)-1])
	}
	f.mu.Unlock()
	if f.chat == nil {
		return "generated", nil
	}
	return f.chat(system, msgs)
}

func (f *fakeLLM) StructuredChat(_ context.Context, system string, msgs []llm.Message) (map[string]any, error) {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	if f.structured == nil {
		return nil, errors.New("structured chat not configured")
	}
	return f.structured(system, msgs)
}

type fakeLookup struct {
	name    string
	results []research.Record
	err     error
	queries []string
}

func (f *fakeLookup) Name() string { return f.name }

func (f *fakeLookup) Lookup(_ context.Context, _ string, _ map[string]string, query string) ([]research.Record, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func (f *fakeLookup) SourceMetadata(results []research.Record) []research.Source {
	out := make([]research.Source, 0, len(results))
	for _, r := range results {
		out = append(out, research.Source{Title: r.String("title"), URL: r.String("url"), Type: f.name})
	}
	return out
}

// fakeLookups builds a registry with an empty-result client per channel.
func fakeLookups() (lookup.Registry, map[research.Channel]*fakeLookup) {
	reg := lookup.Registry{}
	fakes := map[research.Channel]*fakeLookup{}
	for _, ch := range research.AllChannels {
		f := &fakeLookup{name: string(ch)}
		fakes[ch] = f
		reg[ch] = f
	}
	return reg, fakes
}
