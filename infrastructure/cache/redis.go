// Package cache wraps the redis key/value commands used outside of
// pub/sub: a small JSON cache and an idempotency claim.
//
// Every type here degrades gracefully when no redis client is configured:
// the cache always misses and every claim succeeds. The callers keep
// working, just without cross-process deduplication.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
	log    *slog.Logger
}

func NewRedis(client *redis.Client, log *slog.Logger) *Redis {
	return &Redis{client: client, log: log}
}

// GetJSON reads key into out and reports whether a value was found.
// Transport errors are logged and reported as a miss.
func (c *Redis) GetJSON(ctx context.Context, key string, out any) bool {
	if c.client == nil {
		return false
	}

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("Cache read failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.log.Warn("Cache entry is not valid JSON", "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON stores value under key with a TTL, best effort.
func (c *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("Cache value cannot be encoded", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
}

// Del removes keys, best effort.
func (c *Redis) Del(ctx context.Context, keys ...string) {
	if c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("Cache delete failed", "keys", keys, "error", err)
	}
}
