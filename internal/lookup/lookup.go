// Package lookup implements the channel lookup clients the research executor
// consumes. Each client returns ordered result records for a query and can
// describe those results as source attributions.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
)

// ErrUnexpectedStatus wraps non-2xx responses from a lookup backend.
var ErrUnexpectedStatus = errors.New("unexpected status from lookup backend")

const (
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes = 2 << 20
)

// StatusError reports a non-2xx response. It unwraps to ErrUnexpectedStatus.
type StatusError struct {
	Provider string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: %d", e.Provider, ErrUnexpectedStatus, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Client is a channel lookup backend.
type Client interface {
	Name() string
	Lookup(ctx context.Context, company string, scope map[string]string, query string) ([]research.Record, error)
	SourceMetadata(results []research.Record) []research.Source
}

// HTTPOptions configures the shared HTTP behaviour of lookup clients.
type HTTPOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxResults        int
	Client            *http.Client
}

func (o HTTPOptions) maxResults() int {
	if o.MaxResults <= 0 {
		return 6
	}
	return o.MaxResults
}

// fetcher performs rate-limited, breaker-guarded GET requests for one provider.
type fetcher struct {
	provider string
	http     *circuitbreaker.HTTPWrapper
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func newFetcher(provider string, opts HTTPOptions, logger *zap.Logger) *fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &fetcher{
		provider: provider,
		http:     circuitbreaker.NewHTTPWrapper(client, "lookup-"+provider, "lookup", logger),
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
	}
}

func (f *fetcher) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodGet, rawURL)
	defer span.End()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	tracing.InjectTraceparent(ctx, req)

	start := time.Now()
	resp, err := f.http.Do(req)
	if err != nil {
		metrics.LookupRequests.WithLabelValues(f.provider, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("%s request failed: %w", f.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.LookupRequests.WithLabelValues(f.provider, "error").Inc()
		return nil, &StatusError{Provider: f.provider, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.LookupRequests.WithLabelValues(f.provider, "error").Inc()
		return nil, fmt.Errorf("%s: failed to read response: %w", f.provider, err)
	}
	metrics.LookupRequests.WithLabelValues(f.provider, "success").Inc()
	f.logger.Debug("Lookup request completed",
		zap.String("provider", f.provider),
		zap.Int("bytes", len(body)),
		zap.Duration("latency", time.Since(start)),
	)
	return body, nil
}

// urlSources turns records with a url into attributions, skipping repeats.
func urlSources(results []research.Record, sourceType string) []research.Source {
	seen := make(map[string]bool)
	out := make([]research.Source, 0, len(results))
	for _, r := range results {
		url := r.String("url")
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, research.Source{Title: r.First("title", "name"), URL: url, Type: sourceType})
	}
	return out
}
