// Package llm is the text-generation boundary. Callers see a Collaborator that
// either returns text or an error; structured responses that fail to parse
// degrade to a plain reply instead of failing.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/tracing"
)

var (
	// ErrEmptyResponse is returned when the provider produced no text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// ReplyKey carries the raw text when a structured response cannot be parsed.
const ReplyKey = "assistant_reply"

// Message roles understood by providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn sent to the provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Collaborator generates text for the conversation and synthesis layers.
type Collaborator interface {
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
	StructuredChat(ctx context.Context, systemPrompt string, messages []Message) (map[string]any, error)
}

// Request is what a Provider receives.
type Request struct {
	System   string
	Messages []Message
	JSON     bool
}

// Provider is a concrete text-generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Options tunes a Client.
type Options struct {
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client wraps a Provider with rate limiting, circuit breaking, metrics and tracing.
type Client struct {
	provider Provider
	breaker  *circuitbreaker.CircuitBreaker
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClient returns a Collaborator backed by provider.
func NewClient(provider Provider, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
		burst = max(1, opts.RequestsPerMinute/10)
	}
	name := "llm-" + provider.Name()
	cb := circuitbreaker.NewCircuitBreaker(name, circuitbreaker.GetLLMConfig().ToConfig(), logger)
	circuitbreaker.GlobalMetricsCollector.RegisterCircuitBreaker(name, "llm", cb)
	return &Client{
		provider: provider,
		breaker:  cb,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  opts.Timeout,
		logger:   logger,
	}
}

// Chat returns the provider's plain-text reply.
func (c *Client) Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	return c.generate(ctx, Request{System: systemPrompt, Messages: messages})
}

// StructuredChat asks for a JSON object. Unparseable output is returned as
// {"assistant_reply": raw} rather than an error.
func (c *Client) StructuredChat(ctx context.Context, systemPrompt string, messages []Message) (map[string]any, error) {
	raw, err := c.generate(ctx, Request{System: systemPrompt, Messages: messages, JSON: true})
	if err != nil {
		return nil, err
	}
	return ParseStructured(raw), nil
}

// BreakerState exposes the provider breaker for health checks.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Client) generate(ctx context.Context, req Request) (string, error) {
	name := c.provider.Name()
	ctx, span := tracing.StartSpan(ctx, "llm.generate")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit wait: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	var out string
	err := c.breaker.Execute(ctx, func() error {
		text, err := c.provider.Generate(ctx, req)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return ErrEmptyResponse
		}
		out = text
		return nil
	})
	metrics.LLMLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		metrics.LLMRequests.WithLabelValues(name, "error").Inc()
		c.logger.Warn("LLM request failed",
			zap.String("provider", name),
			zap.Bool("json", req.JSON),
			zap.Error(err),
		)
		return "", fmt.Errorf("%s generate: %w", name, err)
	}
	metrics.LLMRequests.WithLabelValues(name, "success").Inc()
	c.logger.Debug("LLM request completed",
		zap.String("provider", name),
		zap.Int("chars", len(out)),
		zap.Duration("latency", time.Since(start)),
	)
	return out, nil
}

// ParseStructured decodes a JSON object from raw model output, tolerating
// markdown code fences. Anything else becomes {"assistant_reply": raw}.
func ParseStructured(raw string) map[string]any {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(body), &out); err != nil || out == nil {
		metrics.StructuredParseFailures.Inc()
		return map[string]any{ReplyKey: raw}
	}
	return out
}
