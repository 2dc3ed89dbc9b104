package circuitbreaker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accountplan_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name", "service"},
	)

	circuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "service", "state", "result"},
	)

	circuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_circuit_breaker_failures_total",
			Help: "Total number of failures in circuit breaker",
		},
		[]string{"name", "service"},
	)

	circuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accountplan_circuit_breaker_state_changes_total",
			Help: "Total number of state changes in circuit breaker",
		},
		[]string{"name", "service", "from_state", "to_state"},
	)

	circuitBreakerOpenSince = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "accountplan_circuit_breaker_open_since_seconds",
			Help: "Timestamp when the circuit breaker entered open state (0 if not open)",
		},
		[]string{"name", "service"},
	)
)

// MetricsCollector tracks every breaker in the process so their gauges can
// be refreshed and open breakers reported to health checks.
type MetricsCollector struct {
	mu       sync.RWMutex
	breakers map[string]tracked
}

type tracked struct {
	name    string
	service string
	cb      *CircuitBreaker
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{breakers: make(map[string]tracked)}
}

// RegisterCircuitBreaker starts exporting cb's state. Call it before cb serves traffic.
func (mc *MetricsCollector) RegisterCircuitBreaker(name, service string, cb *CircuitBreaker) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.breakers[service+"/"+name] = tracked{name: name, service: service, cb: cb}
	circuitBreakerState.WithLabelValues(name, service).Set(float64(cb.State()))

	prev := cb.config.OnStateChange
	cb.config.OnStateChange = func(cbName string, from, to State) {
		if prev != nil {
			prev(cbName, from, to)
		}
		circuitBreakerStateChanges.WithLabelValues(name, service, from.String(), to.String()).Inc()
		circuitBreakerState.WithLabelValues(name, service).Set(float64(to))
		switch {
		case to == StateOpen:
			circuitBreakerOpenSince.WithLabelValues(name, service).SetToCurrentTime()
		case from == StateOpen:
			circuitBreakerOpenSince.WithLabelValues(name, service).Set(0)
		}
	}
}

// RecordRequest counts one call through a breaker.
func (mc *MetricsCollector) RecordRequest(name, service string, state State, success bool) {
	result := "success"
	if !success {
		result = "failure"
		circuitBreakerFailures.WithLabelValues(name, service).Inc()
	}
	circuitBreakerRequests.WithLabelValues(name, service, state.String(), result).Inc()
}

// UpdateMetrics refreshes the state gauge of every registered breaker.
func (mc *MetricsCollector) UpdateMetrics() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for _, t := range mc.breakers {
		circuitBreakerState.WithLabelValues(t.name, t.service).Set(float64(t.cb.State()))
	}
}

// OpenBreakers lists "service/name" for every breaker currently open, sorted.
func (mc *MetricsCollector) OpenBreakers() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	var open []string
	for key, t := range mc.breakers {
		if t.cb.State() == StateOpen {
			open = append(open, key)
		}
	}
	sort.Strings(open)
	return open
}

// GlobalMetricsCollector is shared by the LLM client, lookup and cache wrappers.
var GlobalMetricsCollector = NewMetricsCollector()

// StartMetricsCollection refreshes breaker gauges until ctx is done.
func StartMetricsCollection(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			GlobalMetricsCollector.UpdateMetrics()
		}
	}
}
