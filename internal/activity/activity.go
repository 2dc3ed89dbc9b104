package activity

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// Status is the lifecycle state of an activity event.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// ErrEventNotFound is returned when transitioning an unknown event id.
var ErrEventNotFound = errors.New("activity event not found")

// Result is one display entry attached to a finished event.
type Result struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Event tracks a single executed research task.
type Event struct {
	ID          string           `json:"id"`
	Agent       string           `json:"agent"`
	Channel     research.Channel `json:"channel"`
	Source      string           `json:"source"`
	Query       string           `json:"query"`
	Goal        string           `json:"goal"`
	Status      Status           `json:"status"`
	Results     []Result         `json:"results"`
	StartedAt   string           `json:"started_at"`
	CompletedAt string           `json:"completed_at,omitempty"`
}

// Log is a session's ordered list of activity events. Events are addressed by
// id and only ever move from running to complete or error.
type Log struct {
	mu     sync.RWMutex
	events []*Event
	now    func() time.Time
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Start records a running event for task and returns a copy of it.
func (l *Log) Start(task research.SearchTask) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := &Event{
		ID:        uuid.NewString(),
		Agent:     task.Agent,
		Channel:   task.Channel,
		Source:    task.Source,
		Query:     task.Query,
		Goal:      task.Goal,
		Status:    StatusRunning,
		Results:   []Result{},
		StartedAt: l.timestamp(),
	}
	l.events = append(l.events, ev)
	return *ev
}

// Complete marks an event complete with its display preview.
func (l *Log) Complete(id string, results []Result) (Event, error) {
	if results == nil {
		results = []Result{}
	}
	return l.finish(id, StatusComplete, results)
}

// Fail marks an event as errored with a single entry carrying the error text.
func (l *Log) Fail(id string, cause error) (Event, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return l.finish(id, StatusError, []Result{{Title: "Error", Snippet: msg, URL: ""}})
}

func (l *Log) finish(id string, status Status, results []Result) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ev := range l.events {
		if ev.ID != id {
			continue
		}
		if ev.Status != StatusRunning {
			return *ev, nil
		}
		ev.Status = status
		ev.Results = results
		ev.CompletedAt = l.timestamp()
		return *ev, nil
	}
	return Event{}, ErrEventNotFound
}

// Reset clears all events ahead of a new research cycle.
func (l *Log) Reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// Snapshot returns copies of all events in start order.
func (l *Log) Snapshot() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Event, 0, len(l.events))
	for _, ev := range l.events {
		c := *ev
		c.Results = append([]Result(nil), ev.Results...)
		out = append(out, c)
	}
	return out
}

// Len returns the number of recorded events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func (l *Log) timestamp() string {
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	return now().UTC().Format(time.RFC3339)
}
