package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisService = "lookup-cache"

// RedisWrapper wraps a Redis client with a circuit breaker
type RedisWrapper struct {
	client *redis.Client
	cb     *CircuitBreaker
	logger *zap.Logger
}

// NewRedisWrapper creates a Redis wrapper with circuit breaker
func NewRedisWrapper(client *redis.Client, logger *zap.Logger) *RedisWrapper {
	config := GetCacheConfig().ToConfig()
	// A missing key is a normal cache miss.
	config.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, redis.Nil) }
	cb := NewCircuitBreaker("redis", config, logger)
	GlobalMetricsCollector.RegisterCircuitBreaker("redis", redisService, cb)

	return &RedisWrapper{client: client, cb: cb, logger: logger}
}

// Ping wraps Redis Ping with circuit breaker
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	return rw.run(ctx, func() error { return rw.client.Ping(ctx).Err() })
}

// Get wraps Redis Get with circuit breaker. A missing key returns redis.Nil.
func (rw *RedisWrapper) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := rw.run(ctx, func() error {
		b, err := rw.client.Get(ctx, key).Bytes()
		out = b
		return err
	})
	return out, err
}

// Set wraps Redis Set with circuit breaker
func (rw *RedisWrapper) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return rw.run(ctx, func() error { return rw.client.Set(ctx, key, value, expiration).Err() })
}

// Del wraps Redis Del with circuit breaker
func (rw *RedisWrapper) Del(ctx context.Context, keys ...string) error {
	return rw.run(ctx, func() error { return rw.client.Del(ctx, keys...).Err() })
}

// Close closes the underlying client
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// IsCircuitBreakerOpen returns true if the circuit breaker is open
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.State() == StateOpen
}

func (rw *RedisWrapper) run(ctx context.Context, fn func() error) error {
	err := rw.cb.Execute(ctx, fn)
	success := err == nil || errors.Is(err, redis.Nil)
	GlobalMetricsCollector.RecordRequest("redis", redisService, rw.cb.State(), success)
	return err
}
