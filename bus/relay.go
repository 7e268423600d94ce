package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/samber/lo"

	"chat-gateway/contract"
	"chat-gateway/domain/event"
)

// EventChannel is the single well-known channel carrying every domain
// event between processes.
const EventChannel = "internal:domain-events"

// Relay implements contract.EventBus on top of a PubSub transport.
//
// There is no local delivery shortcut: a process that publishes an event
// receives it back only through the transport round trip, and only if it
// is subscribed. Demultiplexing to handlers is keyed by the event type.
type Relay struct {
	transport contract.PubSub
	log       *slog.Logger

	mu          sync.Mutex
	handlers    map[string]map[uintptr]contract.EventHandler
	unsubscribe contract.Unsubscribe
}

func NewRelay(transport contract.PubSub, log *slog.Logger) *Relay {
	return &Relay{
		transport: transport,
		log:       log,
		handlers:  make(map[string]map[uintptr]contract.EventHandler),
	}
}

// Publish serializes evt and puts it on the shared channel.
func (r *Relay) Publish(ctx context.Context, evt event.DomainEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.Type, err)
	}
	return r.transport.Publish(ctx, EventChannel, raw)
}

// Subscribe registers handler for events of exactly eventType. The very
// first subscription, whatever the type, lazily attaches the relay to the
// shared channel; later calls reuse that attachment.
func (r *Relay) Subscribe(eventType string, handler contract.EventHandler) contract.Unsubscribe {
	r.mu.Lock()
	if r.unsubscribe == nil {
		r.unsubscribe = r.transport.Subscribe(EventChannel, r.dispatch)
	}

	set, ok := r.handlers[eventType]
	if !ok {
		set = make(map[uintptr]contract.EventHandler)
		r.handlers[eventType] = set
	}
	key := reflect.ValueOf(handler).Pointer()
	set[key] = handler
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			set, ok := r.handlers[eventType]
			if !ok {
				return
			}
			delete(set, key)
			if len(set) == 0 {
				delete(r.handlers, eventType)
			}
		})
	}
}

// dispatch decodes a raw transport message and invokes every handler
// registered for the event's type concurrently. A message that does not
// decode is logged and discarded; a type nobody listens to is discarded
// silently; one handler's panic never suppresses the others.
func (r *Relay) dispatch(payload []byte) {
	var evt event.DomainEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		r.log.Warn("Discarding undecodable event", "error", err)
		return
	}

	r.mu.Lock()
	handlers := lo.Values(r.handlers[evt.Type])
	r.mu.Unlock()

	if len(handlers) == 0 {
		return
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h contract.EventHandler) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					r.log.Error("Event handler panicked", "type", evt.Type, "panic", rec)
				}
			}()
			h(ctx, evt)
		}(handler)
	}
	wg.Wait()
}
