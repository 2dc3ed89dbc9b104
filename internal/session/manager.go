package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/streaming"
)

// Store is the process-wide session registry. A session is created on first
// contact and lives in memory until Delete is called or the process exits;
// there is no expiry or eviction.
type Store struct {
	sessions *cache.Cache
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: cache.New(cache.NoExpiration, 0),
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Create registers a new session with a generated id.
func (st *Store) Create() *Session {
	s := New(uuid.NewString())
	st.sessions.SetDefault(s.ID, s)
	st.recordCreate(s.ID)
	return s
}

// Get returns the session for id.
func (st *Store) Get(id string) (*Session, error) {
	if v, ok := st.sessions.Get(id); ok {
		return v.(*Session), nil
	}
	return nil, ErrSessionNotFound
}

// GetOrCreate returns the session for id, creating it when missing. A blank
// id yields a fresh session with a generated id.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return st.Create(), true
	}
	if s, err := st.Get(id); err == nil {
		return s, false
	}
	s := New(id)
	if err := st.sessions.Add(id, s, cache.NoExpiration); err != nil {
		// Lost a race with a concurrent creator.
		existing, _ := st.Get(id)
		return existing, false
	}
	st.recordCreate(id)
	return s, true
}

// Delete removes a session and its replay history.
func (st *Store) Delete(id string) {
	st.sessions.Delete(id)
	st.mu.Lock()
	delete(st.locks, id)
	st.mu.Unlock()
	streaming.Get().Forget(id)
	metrics.SessionsActive.Set(float64(st.sessions.ItemCount()))
	st.logger.Info("Deleted session", zap.String("session_id", id))
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	return st.sessions.ItemCount()
}

// Lock serializes inbound operations on one session. Call the returned
// function to release it.
func (st *Store) Lock(id string) func() {
	st.mu.Lock()
	l, ok := st.locks[id]
	if !ok {
		l = &sync.Mutex{}
		st.locks[id] = l
	}
	st.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (st *Store) recordCreate(id string) {
	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Set(float64(st.sessions.ItemCount()))
	st.logger.Info("Created new session", zap.String("session_id", id))
}
