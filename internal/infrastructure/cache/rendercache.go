package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultCache stores rendered screenshot bytes keyed by request fingerprint.
// Entries are written only after a passing content scan, so a hit can be
// served without re-classifying.
type ResultCache interface {
	// Get returns the cached bytes for key, or ok=false on a miss.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores bytes under key with the given TTL.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// RedisResultCache is the Redis-backed ResultCache used in production.
type RedisResultCache struct {
	client *redis.Client
	prefix string
}

// NewRedisResultCache creates a ResultCache on the given Redis client.
// Keys are namespaced with prefix (e.g. "render:").
func NewRedisResultCache(client *redis.Client, prefix string) *RedisResultCache {
	return &RedisResultCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get cached render: %w", err)
	}
	return data, true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache render: %w", err)
	}
	return nil
}
