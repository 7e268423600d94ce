package repositories

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-gateway/contract"
)

func Test_CreateMessage_Returns_Generated_Fields(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default())
	roomID := uuid.NewString()
	senderID := uuid.NewString()

	stored, err := repository.CreateMessage(context.Background(), contract.CreateMessage{
		RoomID:   roomID,
		SenderID: senderID,
		Message:  "hi",
	})
	req.NoError(err)
	req.NotEqual(uuid.Nil, stored.ID)
	req.Equal(roomID, stored.RoomID)
	req.Equal(senderID, stored.SenderID)
	req.Equal("hi", stored.Content)
	req.False(stored.CreatedAt.IsZero())
}

func Test_RecentMessages_Newest_First_With_Limit(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default())
	roomID := uuid.NewString()
	otherRoomID := uuid.NewString()
	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		_, err = repository.CreateMessage(context.Background(), contract.CreateMessage{
			RoomID:   roomID,
			SenderID: uuid.NewString(),
			Message:  content,
		})
		req.NoError(err)
	}
	_, err = repository.CreateMessage(context.Background(), contract.CreateMessage{
		RoomID:   otherRoomID,
		SenderID: uuid.NewString(),
		Message:  "elsewhere",
	})
	req.NoError(err)

	messages, err := repository.RecentMessages(roomID, 2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("third", messages[0].Content)
	req.Equal("second", messages[1].Content)
	for _, msg := range messages {
		req.Equal(roomID, msg.RoomID)
	}
}

func Test_RecentMessages_Empty_Room(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	repository := NewMessageRepository(db, slog.Default())
	messages, err := repository.RecentMessages(uuid.NewString(), 10)
	req.NoError(err)
	req.Empty(messages)
}
