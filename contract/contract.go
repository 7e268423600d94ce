// Package contract defines the interfaces shared across the gateway,
// the event relay and the persistence layer.
package contract

import (
	"context"

	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
)

// Unsubscribe removes exactly the handler whose registration returned it.
// Calling it more than once is a no-op.
type Unsubscribe func()

// EventHandler consumes a decoded domain event. Handlers run concurrently
// and must not assume any ordering across events.
type EventHandler func(ctx context.Context, evt event.DomainEvent)

// EventBus is the publish/subscribe contract used to decouple producers
// and consumers of domain events.
//
// Publish distributes the event to all current subscribers of the matching
// type, on any process sharing the transport. A configuration without a
// transport degrades Publish to a no-op, not an error.
//
// Subscribe is set-based on handler identity: registering the same function
// value twice for one type invokes it once per publish.
type EventBus interface {
	Publish(ctx context.Context, evt event.DomainEvent) error
	Subscribe(eventType string, handler EventHandler) Unsubscribe
}

// MessageHandler consumes a raw payload received on a logical channel.
type MessageHandler func(payload []byte)

// PubSub is the transport primitive behind the event bus: named logical
// channels multiplexed over one physical connection, at-most-once and
// fire-and-forget. A subscriber connected after a publish never sees it.
//
// Subscribe returns a no-op Unsubscribe when the transport is absent or
// the link cannot be established; callers must treat that as "relay
// disabled", not as an error.
type PubSub interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(channel string, handler MessageHandler) Unsubscribe
}

// CreateMessage carries the fields of a message to persist.
type CreateMessage struct {
	RoomID   string
	SenderID string
	Message  string
}

// MessageStore is the persistence collaborator of the gateway.
// CreateMessage fails loudly on write failure; the gateway does not retry.
type MessageStore interface {
	CreateMessage(ctx context.Context, cmd CreateMessage) (chat.Message, error)
}
