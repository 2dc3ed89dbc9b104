package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single checker.
const DefaultCheckTimeout = 3 * time.Second

// Manager runs registered checkers on demand.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	timeout  time.Duration
	logger   *zap.Logger
}

// NewManager creates a new health manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{checkers: make(map[string]Checker), timeout: DefaultCheckTimeout, logger: logger}
}

// RegisterChecker registers a health check
func (m *Manager) RegisterChecker(c Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := c.Name()
	if name == "" {
		return fmt.Errorf("checker name cannot be empty")
	}
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("checker %s already registered", name)
	}
	m.checkers[name] = c
	m.logger.Debug("Registered health checker", zap.String("name", name), zap.Bool("critical", c.IsCritical()))
	return nil
}

// Check runs every checker concurrently. The service is unhealthy when a
// critical check fails and degraded when any other check is not healthy.
func (m *Manager) Check(ctx context.Context) Report {
	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			res := c.Check(cctx)
			res.Component = c.Name()
			res.Critical = c.IsCritical()
			res.Duration = time.Since(start)
			res.Timestamp = start
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusHealthy, Ready: true, Components: make(map[string]CheckResult, len(results)), Timestamp: time.Now()}
	for _, res := range results {
		rep.Components[res.Component] = res
		if res.Status == StatusHealthy {
			continue
		}
		if res.Critical && res.Status == StatusUnhealthy {
			rep.Status = StatusUnhealthy
			rep.Ready = false
		} else if rep.Status == StatusHealthy {
			rep.Status = StatusDegraded
		}
	}
	return rep
}
