package gateway

import (
	"encoding/json"
	"log/slog"
)

// Error codes of the wire protocol.
const (
	errServerBusy      = "server_busy"
	errPayloadTooLarge = "payload_too_large"
	errTooManyInFlight = "too_many_inflight_messages"
	errRateLimit       = "rate_limit_exceeded"
	errInvalidJSON     = "invalid_json"
	errInvalidPayload  = "invalid_payload"
)

// inboundFrame is the only request clients may send.
type inboundFrame struct {
	RoomID   string `json:"roomId" validate:"required,uuid4"`
	SenderID string `json:"senderId" validate:"required,uuid4"`
	Message  string `json:"message" validate:"required,max=1000"`
	AckID    string `json:"ackId" validate:"required"`
}

type ackFrame struct {
	Type      string `json:"type"`
	AckID     string `json:"ackId"`
	MessageID string `json:"messageId"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type broadcastFrame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func encodeAck(ackID, messageID string) []byte {
	return mustEncode(ackFrame{Type: "ack", AckID: ackID, MessageID: messageID})
}

func encodeError(code string) []byte {
	return mustEncode(errorFrame{Type: "error", Message: code})
}

// mustEncode is safe for the frame types above: they contain nothing
// json.Marshal can reject.
func mustEncode(frame any) []byte {
	raw, err := json.Marshal(frame)
	if err != nil {
		slog.Error("Frame encoding failed", "error", err)
		return []byte(`{"type":"error","message":"internal"}`)
	}
	return raw
}
