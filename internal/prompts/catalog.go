package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrIncompleteCatalog is returned when a catalog lacks a required prompt.
var ErrIncompleteCatalog = errors.New("prompt catalog incomplete")

// SectionPrompt is the instruction and progress line for one report section.
type SectionPrompt struct {
	Prompt   string `yaml:"prompt"`
	Progress string `yaml:"progress"`
}

// Catalog holds every prompt the planner and synthesizer use.
type Catalog struct {
	Clarification string                   `yaml:"clarification"`
	Workplan      string                   `yaml:"workplan"`
	SearchRouter  string                   `yaml:"search_router"`
	SectionSystem string                   `yaml:"section_system"`
	Sections      map[string]SectionPrompt `yaml:"sections"`
}

// Section returns the prompt for s.
func (c *Catalog) Section(s report.Section) SectionPrompt {
	return c.Sections[string(s)]
}

// SearchRouterPrompt renders the search router prompt with the task cap.
func (c *Catalog) SearchRouterPrompt(maxTasks int) string {
	return strings.ReplaceAll(c.SearchRouter, "{max_tasks}", strconv.Itoa(maxTasks))
}

// Validate checks that every required prompt is present.
func (c *Catalog) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"clarification":  c.Clarification,
		"workplan":       c.Workplan,
		"search_router":  c.SearchRouter,
		"section_system": c.SectionSystem,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	for _, s := range report.Sections {
		if strings.TrimSpace(c.Sections[string(s)].Prompt) == "" {
			missing = append(missing, "sections."+string(s))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteCatalog, strings.Join(missing, ", "))
	}
	return nil
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := decode(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts invalid: %v", err))
	}
	return c
}

// LoadFile reads an override file and layers it over the built-in catalog.
// Keys absent from the file keep their defaults.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	override, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	merged := Default().merge(override)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func decode(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) merge(o *Catalog) *Catalog {
	out := *c
	out.Sections = make(map[string]SectionPrompt, len(c.Sections))
	for k, v := range c.Sections {
		out.Sections[k] = v
	}
	if o.Clarification != "" {
		out.Clarification = o.Clarification
	}
	if o.Workplan != "" {
		out.Workplan = o.Workplan
	}
	if o.SearchRouter != "" {
		out.SearchRouter = o.SearchRouter
	}
	if o.SectionSystem != "" {
		out.SectionSystem = o.SectionSystem
	}
	for k, v := range o.Sections {
		cur := out.Sections[k]
		if v.Prompt != "" {
			cur.Prompt = v.Prompt
		}
		if v.Progress != "" {
			cur.Progress = v.Progress
		}
		out.Sections[k] = cur
	}
	return &out
}

// Store holds the active catalog and allows it to be swapped at runtime.
type Store struct {
	current atomic.Pointer[Catalog]
}

// NewStore returns a store serving c, or the built-in catalog when c is nil.
func NewStore(c *Catalog) *Store {
	if c == nil {
		c = Default()
	}
	s := &Store{}
	s.current.Store(c)
	return s
}

// Current returns the active catalog.
func (s *Store) Current() *Catalog {
	return s.current.Load()
}

// Swap installs a new catalog.
func (s *Store) Swap(c *Catalog) {
	s.current.Store(c)
}
