package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/activity"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/report"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/streaming"
)

var (
	// ErrSessionNotFound is returned when a session doesn't exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned for blank session identifiers
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Stage is the conversation's position in the account-plan workflow.
type Stage string

const (
	StagePlanning       Stage = "PLANNING"
	StageConfirmingPlan Stage = "CONFIRMING_PLAN"
	StageResearching    Stage = "RESEARCHING"
	StageAnalyzing      Stage = "ANALYZING"
	StageReviewing      Stage = "REVIEWING"
	StageEditing        Stage = "EDITING"
	StageDone           Stage = "DONE"
)

// Busy reports whether the stage belongs to an in-flight pipeline or edit.
func (s Stage) Busy() bool {
	switch s {
	case StageResearching, StageAnalyzing, StageEditing:
		return true
	}
	return false
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation's state. Field access goes through methods so
// progress readers can poll while a pipeline writes.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	updatedAt time.Time
	stage     Stage
	scope     map[string]string
	workplan  string
	history   []Message
	progress  []string
	bundle    *research.Bundle
	report    *report.Report
	tasks     []research.SearchTask

	// Activity is the session's task telemetry.
	Activity *activity.Log

	events *streaming.Manager
}

// New creates a session in the PLANNING stage.
func New(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		updatedAt: now,
		stage:     StagePlanning,
		scope:     make(map[string]string),
		Activity:  activity.NewLog(),
		events:    streaming.Get(),
	}
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// SetStage moves the session to stage and publishes the change.
func (s *Session) SetStage(stage Stage) {
	s.mu.Lock()
	prev := s.stage
	s.stage = stage
	s.touch()
	s.mu.Unlock()

	if prev != stage {
		metrics.StageTransitions.WithLabelValues(string(prev), string(stage)).Inc()
		s.publish(streaming.Event{Type: streaming.EventStage, Stage: string(stage)})
	}
}

// Scope returns a copy of the research brief parameters.
func (s *Session) Scope() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.scope))
	for k, v := range s.scope {
		out[k] = v
	}
	return out
}

// SetScopeValue stores one brief parameter. Blank values are ignored.
func (s *Session) SetScopeValue(key, value string) {
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	s.mu.Lock()
	s.scope[key] = value
	s.touch()
	s.mu.Unlock()
}

// Workplan returns the stored workplan text.
func (s *Session) Workplan() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workplan
}

// SetWorkplan replaces the workplan; an empty string clears it.
func (s *Session) SetWorkplan(plan string) {
	s.mu.Lock()
	s.workplan = plan
	s.touch()
	s.mu.Unlock()
}

// AppendMessage adds a chat turn.
func (s *Session) AppendMessage(role, content string) {
	s.mu.Lock()
	s.history = append(s.history, Message{Role: role, Content: content, Timestamp: time.Now().UTC()})
	s.touch()
	s.mu.Unlock()

	if role == RoleAssistant {
		s.publish(streaming.Event{Type: streaming.EventReply, Message: content})
	}
}

// History returns a copy of the chat history.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.history...)
}

// LogProgress appends a user-facing progress line unless it repeats the last one.
func (s *Session) LogProgress(line string) {
	s.mu.Lock()
	if n := len(s.progress); n > 0 && s.progress[n-1] == line {
		s.mu.Unlock()
		return
	}
	s.progress = append(s.progress, line)
	s.touch()
	s.mu.Unlock()

	s.publish(streaming.Event{Type: streaming.EventProgress, Message: line})
}

// ResetProgress clears the progress log.
func (s *Session) ResetProgress() {
	s.mu.Lock()
	s.progress = nil
	s.mu.Unlock()
}

// Progress returns a copy of the progress log.
func (s *Session) Progress() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.progress...)
}

// Bundle returns the current research bundle, or nil.
func (s *Session) Bundle() *research.Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// SetBundle attaches the bundle of a finished research cycle.
func (s *Session) SetBundle(b *research.Bundle) {
	s.mu.Lock()
	s.bundle = b
	s.touch()
	s.mu.Unlock()
}

// Report returns the current report, or nil. Callers must not mutate it;
// use SetReport with a modified clone instead.
func (s *Session) Report() *report.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// SetReport replaces the report.
func (s *Session) SetReport(r *report.Report) {
	s.mu.Lock()
	s.report = r
	s.touch()
	s.mu.Unlock()
}

// Tasks returns the normalized tasks of the last research cycle.
func (s *Session) Tasks() []research.SearchTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]research.SearchTask(nil), s.tasks...)
}

// SetTasks records the normalized tasks of a research cycle.
func (s *Session) SetTasks(tasks []research.SearchTask) {
	s.mu.Lock()
	s.tasks = append([]research.SearchTask(nil), tasks...)
	s.mu.Unlock()
}

// UpdatedAt returns the last mutation time.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// PublishActivity forwards an activity transition to live subscribers.
func (s *Session) PublishActivity(ev activity.Event) {
	s.publish(streaming.Event{Type: streaming.EventActivity, Activity: &ev})
}

// Snapshot is the polling view of a session's progress.
type Snapshot struct {
	SessionID        string           `json:"session_id"`
	Stage            Stage            `json:"stage"`
	ProgressLog      []string         `json:"progress_log"`
	ResearchActivity []activity.Event `json:"research_activity"`
}

// Snapshot captures stage, progress and activity for polling clients.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		SessionID:        s.ID,
		Stage:            s.Stage(),
		ProgressLog:      s.Progress(),
		ResearchActivity: s.Activity.Snapshot(),
	}
}

func (s *Session) touch() { s.updatedAt = time.Now().UTC() }

func (s *Session) publish(evt streaming.Event) {
	if s.events != nil {
		s.events.Publish(s.ID, evt)
	}
}
