// Package chat contains core concepts of the chat system.
// Messages are immutable once persisted.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageCreatedType is the event type published after a message is stored.
const MessageCreatedType = "chat.message.created"

// MessageAggregate names the entity type originating chat events.
const MessageAggregate = "chat_message"

// Message represents a persisted chat message.
type Message struct {
	ID        uuid.UUID
	RoomID    string
	SenderID  string
	Content   string
	CreatedAt time.Time
}
