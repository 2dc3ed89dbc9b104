package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
)

// ErrCacheMiss is returned by a Cache when the key is absent.
var ErrCacheMiss = errors.New("lookup cache miss")

// Cache stores lookup results keyed by provider and query.
type Cache interface {
	Get(ctx context.Context, key string) ([]research.Record, error)
	Set(ctx context.Context, key string, records []research.Record) error
}

// RedisCache keeps JSON-encoded results in Redis behind a circuit breaker.
type RedisCache struct {
	rw  *circuitbreaker.RedisWrapper
	ttl time.Duration
}

// NewRedisCache creates a Redis-backed cache. A zero ttl keeps entries forever.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	return &RedisCache{rw: circuitbreaker.NewRedisWrapper(client, logger), ttl: ttl}
}

// Get loads cached records.
func (c *RedisCache) Get(ctx context.Context, key string) ([]research.Record, error) {
	raw, err := c.rw.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var out []research.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores records.
func (c *RedisCache) Set(ctx context.Context, key string, records []research.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.rw.Set(ctx, key, raw, c.ttl)
}

// Ping checks the backing Redis.
func (c *RedisCache) Ping(ctx context.Context) error { return c.rw.Ping(ctx) }

// Close releases the Redis client.
func (c *RedisCache) Close() error { return c.rw.Close() }

// CacheKey derives the cache key for a lookup.
func CacheKey(provider, company, query string) string {
	h := xxhash.New()
	_, _ = h.WriteString(strings.ToLower(strings.TrimSpace(company)))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strings.ToLower(strings.TrimSpace(query)))
	return "lookup:" + provider + ":" + strconv.FormatUint(h.Sum64(), 16)
}

type cachedClient struct {
	Client
	cache  Cache
	logger *zap.Logger
}

// Cached decorates a client with a result cache. Cache failures fall through
// to the live backend and empty results are not stored.
func Cached(c Client, cache Cache, logger *zap.Logger) Client {
	if cache == nil {
		return c
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedClient{Client: c, cache: cache, logger: logger}
}

func (c *cachedClient) Lookup(ctx context.Context, company string, scope map[string]string, query string) ([]research.Record, error) {
	provider := c.Name()
	key := CacheKey(provider, company, query)

	records, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.LookupCacheHits.WithLabelValues(provider).Inc()
		return records, nil
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Lookup cache read failed", zap.String("provider", provider), zap.Error(err))
	}
	metrics.LookupCacheMisses.WithLabelValues(provider).Inc()

	records, err = c.Client.Lookup(ctx, company, scope, query)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		if err := c.cache.Set(ctx, key, records); err != nil {
			c.logger.Warn("Lookup cache write failed", zap.String("provider", provider), zap.Error(err))
		}
	}
	return records, nil
}
