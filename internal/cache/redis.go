package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/heimdall-sdk/internal/observability"
	"github.com/rafaeljc/heimdall-sdk/internal/validation"
)

// KeyPrefix is the namespace used for all config entries in Redis.
// Example: "heimdall:config:<cache key>"
const KeyPrefix = "heimdall:config"

const backendRedis = "redis"

// RedisStore implements Store on top of Redis strings so that every process
// polling the same SDK key can reuse the latest downloaded config.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore wraps an initialized client. A zero ttl keeps entries forever.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	validation.AssertPresent(client, "redis client")
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", KeyPrefix, key)
}

// Get reads the entry stored under key. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		observability.CacheMisses.WithLabelValues(backendRedis).Inc()
		return "", nil
	}
	if err != nil {
		observability.CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return "", fmt.Errorf("failed to read config entry from redis: %w", err)
	}
	observability.CacheHits.WithLabelValues(backendRedis).Inc()
	return v, nil
}

// Set overwrites the entry stored under key.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, redisKey(key), value, s.ttl).Err(); err != nil {
		observability.CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return fmt.Errorf("failed to write config entry to redis: %w", err)
	}
	return nil
}

// Name implements observability.Checker.
func (s *RedisStore) Name() string {
	return backendRedis
}

// Check pings the Redis server. Used by the readiness probe.
func (s *RedisStore) Check(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
