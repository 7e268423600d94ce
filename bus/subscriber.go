// Package bus bridges the EventBus contract onto a shared redis pub/sub
// channel so that events reach every gateway process, not just the
// publishing one.
package bus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"chat-gateway/contract"
)

// Subscriber owns exactly one physical subscription link and multiplexes
// every logical channel over it. The link is established lazily, on the
// first Subscribe call; without a redis client the subscriber stays
// disabled and hands out no-op disposers.
//
// Reconnects after a transient link failure are delegated to go-redis,
// which re-issues the active SUBSCRIBE commands on its own.
type Subscriber struct {
	client *redis.Client
	log    *slog.Logger

	mu       sync.Mutex
	pubsub   *redis.PubSub
	handlers map[string]map[uintptr]contract.MessageHandler
	closed   bool
	done     chan struct{}
}

func NewSubscriber(client *redis.Client, log *slog.Logger) *Subscriber {
	return &Subscriber{
		client:   client,
		log:      log,
		handlers: make(map[string]map[uintptr]contract.MessageHandler),
		done:     make(chan struct{}),
	}
}

// Subscribe registers handler for messages on channel. The first handler
// of a channel issues a physical SUBSCRIBE; the returned disposer removes
// the handler and issues a physical UNSUBSCRIBE once the set empties.
func (s *Subscriber) Subscribe(channel string, handler contract.MessageHandler) contract.Unsubscribe {
	if s.client == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}

	if s.pubsub == nil {
		// Lazy connect: one link, every logical channel rides on it.
		s.pubsub = s.client.Subscribe(context.Background())
		go s.receive(s.pubsub.Channel())
	}

	set, active := s.handlers[channel]
	if !active {
		if err := s.pubsub.Subscribe(context.Background(), channel); err != nil {
			s.mu.Unlock()
			s.log.Warn("Channel subscribe failed, relay disabled for this caller",
				"channel", channel, "error", err)
			return func() {}
		}
		set = make(map[uintptr]contract.MessageHandler)
		s.handlers[channel] = set
	}

	key := reflect.ValueOf(handler).Pointer()
	set[key] = handler
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(channel, key) })
	}
}

func (s *Subscriber) remove(channel string, key uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.handlers[channel]
	if !ok {
		return
	}
	delete(set, key)
	if len(set) > 0 {
		return
	}

	delete(s.handlers, channel)
	if s.pubsub == nil || s.closed {
		return
	}
	if err := s.pubsub.Unsubscribe(context.Background(), channel); err != nil {
		s.log.Warn("Channel unsubscribe failed", "channel", channel, "error", err)
	}
}

// receive fans every message out to the matching channel's handler set.
// A handler panic is recovered and logged; it never stops the loop.
func (s *Subscriber) receive(messages <-chan *redis.Message) {
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (s *Subscriber) dispatch(channel string, payload []byte) {
	s.mu.Lock()
	handlers := lo.Values(s.handlers[channel])
	s.mu.Unlock()

	for _, handler := range handlers {
		go func(h contract.MessageHandler) {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("Channel handler panicked", "channel", channel, "panic", r)
				}
			}()
			h(payload)
		}(handler)
	}
}

// Close shuts the physical link down. It is idempotent; a second call is
// a no-op. Subscribing after Close hands out no-op disposers.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.pubsub == nil {
		return nil
	}
	return s.pubsub.Close()
}
