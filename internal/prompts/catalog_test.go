package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
)

func TestDefaultCatalogComplete(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "Building overview…", c.Section(report.SectionOverview).Progress)
	assert.Equal(t, "Framing 30-60-90 plan…", c.Section(report.SectionPlan306090).Progress)
	assert.Contains(t, c.SearchRouterPrompt(12), "at most 12 tasks")
	assert.Equal(t, "You are an enterprise GTM strategist producing a structured report.", c.SectionSystem)
}

func TestLoadFileOverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sections:\n  swot:\n    prompt: Custom SWOT\n"), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Custom SWOT", c.Section(report.SectionSWOT).Prompt)
	assert.Equal(t, "Drafting SWOT…", c.Section(report.SectionSWOT).Progress)
	assert.Equal(t, Default().Workplan, c.Workplan)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clarifcation: typo\n"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workplan: first\n"), 0o644))

	store := NewStore(nil)
	w, err := NewWatcher(path, store, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.NoError(t, os.WriteFile(path, []byte("workplan: second\n"), 0o644))
	assert.Eventually(t, func() bool {
		return store.Current().Workplan == "second"
	}, 5*time.Second, 20*time.Millisecond)
}
