package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/circuitbreaker"
)

// Pinger is anything that can verify a backend connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a backend reachable through Ping.
type PingChecker struct {
	name     string
	pinger   Pinger
	critical bool
}

// NewPingChecker creates a checker for pinger.
func NewPingChecker(name string, pinger Pinger, critical bool) *PingChecker {
	return &PingChecker{name: name, pinger: pinger, critical: critical}
}

func (p *PingChecker) Name() string     { return p.name }
func (p *PingChecker) IsCritical() bool { return p.critical }

func (p *PingChecker) Check(ctx context.Context) CheckResult {
	if err := p.pinger.Ping(ctx); err != nil {
		status := StatusDegraded
		if p.critical {
			status = StatusUnhealthy
		}
		return CheckResult{Status: status, Error: err.Error(), Message: p.name + " unreachable"}
	}
	return CheckResult{Status: StatusHealthy, Message: p.name + " reachable"}
}

// BreakerSource exposes a circuit breaker state.
type BreakerSource interface {
	BreakerState() circuitbreaker.State
}

// BreakerChecker reports a dependency guarded by a circuit breaker. An open
// breaker degrades the service; generation falls back to extractive text.
type BreakerChecker struct {
	name   string
	source BreakerSource
}

// NewBreakerChecker creates a non-critical breaker checker.
func NewBreakerChecker(name string, source BreakerSource) *BreakerChecker {
	return &BreakerChecker{name: name, source: source}
}

func (b *BreakerChecker) Name() string     { return b.name }
func (b *BreakerChecker) IsCritical() bool { return false }

func (b *BreakerChecker) Check(context.Context) CheckResult {
	state := b.source.BreakerState()
	switch state {
	case circuitbreaker.StateClosed:
		return CheckResult{Status: StatusHealthy, Message: "circuit closed"}
	default:
		return CheckResult{Status: StatusDegraded, Message: fmt.Sprintf("circuit %s", state)}
	}
}

// OpenBreakerLister lists the breakers that are currently open.
type OpenBreakerLister interface {
	OpenBreakers() []string
}

// BreakerSetChecker degrades when any lookup, cache or LLM breaker is open.
type BreakerSetChecker struct {
	name   string
	lister OpenBreakerLister
}

func NewBreakerSetChecker(name string, lister OpenBreakerLister) *BreakerSetChecker {
	return &BreakerSetChecker{name: name, lister: lister}
}

func (b *BreakerSetChecker) Name() string     { return b.name }
func (b *BreakerSetChecker) IsCritical() bool { return false }

func (b *BreakerSetChecker) Check(context.Context) CheckResult {
	open := b.lister.OpenBreakers()
	if len(open) == 0 {
		return CheckResult{Status: StatusHealthy, Message: "all circuits closed"}
	}
	return CheckResult{Status: StatusDegraded, Message: "open: " + strings.Join(open, ", ")}
}
