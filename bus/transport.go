package bus

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisTransport implements contract.PubSub on redis: fire-and-forget
// publishes on the regular client, one shared Subscriber link for every
// subscription. A nil client turns both halves into no-ops so the rest
// of the process keeps running without a relay.
type RedisTransport struct {
	client *redis.Client
	*Subscriber
}

func NewRedisTransport(client *redis.Client, log *slog.Logger) *RedisTransport {
	return &RedisTransport{client: client, Subscriber: NewSubscriber(client, log)}
}

// Publish sends payload on channel. Delivery is at-most-once: nobody
// subscribed means the message is gone, and that is the contract.
func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if t.client == nil {
		return nil
	}
	return t.client.Publish(ctx, channel, payload).Err()
}
