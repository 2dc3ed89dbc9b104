package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestCollectorTracksOpenBreakers(t *testing.T) {
	mc := NewMetricsCollector()
	cfg := DefaultConfig()
	cfg.FailureThreshold = 1
	cfg.Timeout = time.Hour

	var changes []string
	cfg.OnStateChange = func(_ string, from, to State) { changes = append(changes, from.String()+">"+to.String()) }

	healthy := NewCircuitBreaker("web", cfg, zaptest.NewLogger(t))
	failing := NewCircuitBreaker("news", cfg, zaptest.NewLogger(t))
	mc.RegisterCircuitBreaker("web", "metrics-test", healthy)
	mc.RegisterCircuitBreaker("news", "metrics-test", failing)
	assert.Empty(t, mc.OpenBreakers())

	_ = failing.Execute(t.Context(), func() error { return errors.New("boom") })

	assert.Equal(t, []string{"metrics-test/news"}, mc.OpenBreakers())
	assert.Equal(t, []string{"closed>open"}, changes)
	assert.Equal(t, float64(StateOpen), testutil.ToFloat64(circuitBreakerState.WithLabelValues("news", "metrics-test")))

	mc.UpdateMetrics()
	assert.Equal(t, float64(StateClosed), testutil.ToFloat64(circuitBreakerState.WithLabelValues("web", "metrics-test")))
}

func TestRecordRequestCountsFailures(t *testing.T) {
	mc := NewMetricsCollector()
	mc.RecordRequest("lookup", "metrics-record", StateClosed, false)
	mc.RecordRequest("lookup", "metrics-record", StateClosed, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerFailures.WithLabelValues("lookup", "metrics-record")))
	assert.Equal(t, 1.0, testutil.ToFloat64(circuitBreakerRequests.WithLabelValues("lookup", "metrics-record", "closed", "success")))
}
