package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency hands out at-most-one claim per key within a TTL, backed
// by SET NX EX. Without redis (or when redis errors) every claim
// succeeds, trading deduplication for availability.
type Idempotency struct {
	client *redis.Client
	log    *slog.Logger
}

func NewIdempotency(client *redis.Client, log *slog.Logger) *Idempotency {
	return &Idempotency{client: client, log: log}
}

// Claim reports whether the caller is the first to claim key within ttl.
func (i *Idempotency) Claim(ctx context.Context, key string, ttl time.Duration) bool {
	if i.client == nil {
		return true
	}

	ok, err := i.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		i.log.Warn("Idempotency claim failed, allowing request", "key", key, "error", err)
		return true
	}
	return ok
}
