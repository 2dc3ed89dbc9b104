package activities

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/lookup"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/prompts"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

var (
	// ErrMissingBundle is returned when synthesis or regeneration runs before research
	ErrMissingBundle = errors.New("research bundle missing: run research before analysis")
	// ErrMissingReport is returned when regeneration runs before synthesis
	ErrMissingReport = errors.New("report missing: run synthesis before regenerating a section")
)

// Lookups resolves the lookup client for a channel. lookup.Registry satisfies it.
type Lookups interface {
	For(ch research.Channel) lookup.Client
}

// Config tunes the planning and research steps.
type Config struct {
	// MaxTasks caps the task list at both normalization passes.
	MaxTasks int
}

// Activities holds the collaborators shared by the planning, research and
// synthesis steps.
type Activities struct {
	llm      llm.Collaborator
	prompts  *prompts.Store
	lookups  Lookups
	maxTasks int
	logger   *zap.Logger
}

// NewActivities creates a new activities instance with dependencies
func NewActivities(collaborator llm.Collaborator, store *prompts.Store, lookups Lookups, cfg Config, logger *zap.Logger) *Activities {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = prompts.NewStore(prompts.Default())
	}
	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = research.DefaultMaxTasks
	}
	return &Activities{
		llm:      collaborator,
		prompts:  store,
		lookups:  lookups,
		maxTasks: maxTasks,
		logger:   logger,
	}
}

// MaxTasks is the effective task cap.
func (a *Activities) MaxTasks() int { return a.maxTasks }
