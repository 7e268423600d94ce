// Package services holds the use cases sitting between the gateway and
// the persistence/event infrastructure.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chat-gateway/contract"
	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
)

// Claimer decides whether a key is seen for the first time within a TTL.
type Claimer interface {
	Claim(ctx context.Context, key string, ttl time.Duration) bool
}

// ReceiptCache remembers the outcome of an already-processed request.
type ReceiptCache interface {
	GetJSON(ctx context.Context, key string, out any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
}

type receipt struct {
	MessageID string `json:"messageId"`
}

type ChatService struct {
	log    *slog.Logger
	store  contract.MessageStore
	bus    contract.EventBus
	claims Claimer
	cache  ReceiptCache
	ttl    time.Duration
}

func NewChatService(log *slog.Logger, store contract.MessageStore, bus contract.EventBus,
	claims Claimer, cache ReceiptCache, ttl time.Duration) *ChatService {
	return &ChatService{log: log, store: store, bus: bus, claims: claims, cache: cache, ttl: ttl}
}

// SendMessage persists the message, publishes chat.message.created and
// returns the generated message id.
//
// A retried ackId within the idempotency TTL is answered from the cached
// receipt without persisting or publishing again. The acknowledgment is
// tied to persistence success only: a failed publish is logged and the
// message may simply never be broadcast, which the at-most-once transport
// allows anyway.
func (s *ChatService) SendMessage(ctx context.Context, cmd chat.SendMessage) (string, error) {
	receiptKey := "chat:receipt:" + cmd.AckID

	if fresh := s.claims.Claim(ctx, receiptKey+":claim", s.ttl); !fresh {
		var r receipt
		if s.cache.GetJSON(ctx, receiptKey, &r) {
			s.log.Debug("Duplicate send answered from receipt", "ackId", cmd.AckID)
			return r.MessageID, nil
		}
		// Claimed but no receipt yet: the first attempt is still running
		// or died before writing its receipt. Process normally.
	}

	stored, err := s.store.CreateMessage(ctx, contract.CreateMessage{
		RoomID:   cmd.RoomID,
		SenderID: cmd.SenderID,
		Message:  cmd.Content,
	})
	if err != nil {
		return "", fmt.Errorf("persist chat message: %w", err)
	}

	evt := event.New(chat.MessageAggregate, chat.MessageCreatedType, map[string]any{
		"messageId": stored.ID.String(),
		"roomId":    stored.RoomID,
		"senderId":  stored.SenderID,
		"message":   stored.Content,
		"createdAt": stored.CreatedAt.Format(time.RFC3339Nano),
		"ackId":     cmd.AckID,
	})
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.log.Warn("Event publish failed, message stored but not broadcast",
			"type", evt.Type, "messageId", stored.ID, "error", err)
	}

	s.cache.SetJSON(ctx, receiptKey, receipt{MessageID: stored.ID.String()}, s.ttl)
	return stored.ID.String(), nil
}
