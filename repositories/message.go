// Package repositories persists chat data in BadgerDB.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-gateway/contract"
	"chat-gateway/domain/chat"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateMessage implements contract.MessageStore.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) CreateMessage(ctx context.Context, cmd contract.CreateMessage) (chat.Message, error) {
	msg := chat.Message{
		ID:        uuid.New(),
		RoomID:    cmd.RoomID,
		SenderID:  cmd.SenderID,
		Content:   cmd.Message,
		CreatedAt: time.Now().UTC(),
	}

	key := fmt.Sprintf("msg:%s:%019d:%s", msg.RoomID, msg.CreatedAt.UnixNano(), msg.ID)
	raw, err := json.Marshal(fromMessage(msg))
	if err != nil {
		return chat.Message{}, fmt.Errorf("encode chat message: %w", err)
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("store chat message: %w", err)
	}
	return msg, nil
}

// RecentMessages returns up to limit messages of a room, newest first.
// Thanks to the padded timestamp in the key, a reverse prefix scan walks
// messages in reverse chronological order.
func (m MessageRepository) RecentMessages(roomID string, limit int) ([]chat.Message, error) {
	var rows []diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", roomID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key of the room, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(rows) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			var row diskMessage
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &row)
			})
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read chat messages: %w", err)
	}

	messages := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := toMessage(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func fromMessage(msg chat.Message) diskMessage {
	return diskMessage{
		ID:        msg.ID.String(),
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Message:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func toMessage(row diskMessage) (chat.Message, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("corrupt message id %q: %w", row.ID, err)
	}
	return chat.Message{
		ID:        id,
		RoomID:    row.RoomID,
		SenderID:  row.SenderID,
		Content:   row.Message,
		CreatedAt: row.CreatedAt,
	}, nil
}
