package bus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-gateway/contract"
	"chat-gateway/domain/event"
)

// memoryTransport is an in-process PubSub delivering synchronously, so
// relay tests stay deterministic.
type memoryTransport struct {
	mu       sync.Mutex
	handlers map[string][]contract.MessageHandler
}

func newMemoryTransport() *memoryTransport {
	return &memoryTransport{handlers: make(map[string][]contract.MessageHandler)}
}

func (m *memoryTransport) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	handlers := append([]contract.MessageHandler{}, m.handlers[channel]...)
	m.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (m *memoryTransport) Subscribe(channel string, handler contract.MessageHandler) contract.Unsubscribe {
	m.mu.Lock()
	m.handlers[channel] = append(m.handlers[channel], handler)
	m.mu.Unlock()
	return func() {}
}

func Test_Relay_RoundTrip_Invokes_Handler_Once_Per_Publish(t *testing.T) {
	req := require.New(t)
	relay := NewRelay(newMemoryTransport(), slog.Default())

	var calls atomic.Int64
	handler := func(_ context.Context, _ event.DomainEvent) { calls.Add(1) }

	// The registry is set-based: the same function value twice counts once.
	relay.Subscribe("chat.message.created", handler)
	relay.Subscribe("chat.message.created", handler)

	err := relay.Publish(context.Background(), event.New("chat_message", "chat.message.created", map[string]any{"k": "v"}))
	req.NoError(err)
	req.Equal(int64(1), calls.Load())
}

func Test_Relay_Delivers_Decoded_Event(t *testing.T) {
	req := require.New(t)
	relay := NewRelay(newMemoryTransport(), slog.Default())

	received := make(chan event.DomainEvent, 1)
	relay.Subscribe("chat.message.created", func(_ context.Context, evt event.DomainEvent) {
		received <- evt
	})

	sent := event.New("chat_message", "chat.message.created", map[string]any{"messageId": "m1"})
	req.NoError(relay.Publish(context.Background(), sent))

	evt := <-received
	req.Equal(sent.ID, evt.ID)
	req.Equal("chat.message.created", evt.Type)
	req.Equal("m1", evt.Payload["messageId"])
}

func Test_Relay_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	relay := NewRelay(newMemoryTransport(), slog.Default())

	var calls atomic.Int64
	unsubscribe := relay.Subscribe("chat.message.created", func(_ context.Context, _ event.DomainEvent) {
		calls.Add(1)
	})

	req.NoError(relay.Publish(context.Background(), event.New("chat_message", "chat.message.created", nil)))
	req.Equal(int64(1), calls.Load())

	unsubscribe()
	unsubscribe() // second call is a no-op

	req.NoError(relay.Publish(context.Background(), event.New("chat_message", "chat.message.created", nil)))
	req.Equal(int64(1), calls.Load())
}

func Test_Relay_Unmatched_Type_Is_Discarded(t *testing.T) {
	req := require.New(t)
	relay := NewRelay(newMemoryTransport(), slog.Default())

	var calls atomic.Int64
	relay.Subscribe("chat.message.created", func(_ context.Context, _ event.DomainEvent) { calls.Add(1) })

	req.NoError(relay.Publish(context.Background(), event.New("order", "order.created", nil)))
	req.Equal(int64(0), calls.Load())
}

func Test_Relay_Malformed_Message_Is_Discarded(t *testing.T) {
	req := require.New(t)
	transport := newMemoryTransport()
	relay := NewRelay(transport, slog.Default())

	var calls atomic.Int64
	relay.Subscribe("chat.message.created", func(_ context.Context, _ event.DomainEvent) { calls.Add(1) })

	// Garbage straight on the shared channel must not crash the relay.
	req.NoError(transport.Publish(context.Background(), EventChannel, []byte("{not json")))
	req.Equal(int64(0), calls.Load())

	// And the relay still works afterwards.
	req.NoError(relay.Publish(context.Background(), event.New("chat_message", "chat.message.created", nil)))
	req.Equal(int64(1), calls.Load())
}

func Test_Relay_Handler_Panic_Does_Not_Suppress_Others(t *testing.T) {
	req := require.New(t)
	relay := NewRelay(newMemoryTransport(), slog.Default())

	var survived atomic.Int64
	relay.Subscribe("chat.message.created", func(_ context.Context, _ event.DomainEvent) {
		panic("boom")
	})
	relay.Subscribe("chat.message.created", func(_ context.Context, _ event.DomainEvent) {
		survived.Add(1)
	})

	req.NoError(relay.Publish(context.Background(), event.New("chat_message", "chat.message.created", nil)))
	req.Equal(int64(1), survived.Load())
}
