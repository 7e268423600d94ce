package chat

// SendMessage is a validated intent to post a message in a room.
// AckID is supplied by the client and correlates the acknowledgment
// with the request; responses may arrive out of submission order.
type SendMessage struct {
	RoomID   string
	SenderID string
	Content  string
	AckID    string
}
