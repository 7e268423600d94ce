// Package gateway accepts websocket connections, shields the process
// with admission, rate and concurrency limits, turns valid requests into
// stored messages and relays every chat.message.created event to all
// open connections.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"chat-gateway/contract"
	"chat-gateway/domain/chat"
	"chat-gateway/domain/event"
)

// MessageSender is the use case behind a validated send request.
type MessageSender interface {
	SendMessage(ctx context.Context, cmd chat.SendMessage) (string, error)
}

type Options struct {
	ListenPort      int
	MaxConnections  int
	RateLimitWindow time.Duration
	RateLimitMax    int
	MaxInFlight     int
	// MaxBufferedBytes caps both the inbound frame size and the outbound
	// buffered bytes a slow consumer may accumulate before broadcasts to
	// it are dropped.
	MaxBufferedBytes int64
	// SendQueueLength sizes each connection's outbound frame queue.
	SendQueueLength int
}

type Gateway struct {
	log      *slog.Logger
	opts     Options
	chat     MessageSender
	bus      contract.EventBus
	validate *validator.Validate
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*conn]struct{}

	baseCtx     context.Context
	server      *http.Server
	unsubscribe contract.Unsubscribe
}

func New(log *slog.Logger, opts Options, sender MessageSender, bus contract.EventBus) *Gateway {
	if opts.SendQueueLength <= 0 {
		opts.SendQueueLength = 64
	}
	return &Gateway{
		log:      log,
		opts:     opts,
		chat:     sender,
		bus:      bus,
		validate: validator.New(),
		conns:    make(map[*conn]struct{}),
		baseCtx:  context.Background(),
	}
}

// Handler exposes the websocket endpoint. Split from Start so tests can
// mount it on an httptest server.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleUpgrade)
	return mux
}

// Start subscribes to the broadcast event type and serves the dedicated
// websocket listener until Shutdown.
func (g *Gateway) Start(ctx context.Context) error {
	g.baseCtx = ctx
	g.unsubscribe = g.bus.Subscribe(chat.MessageCreatedType, g.broadcast)

	addr := fmt.Sprintf(":%d", g.opts.ListenPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", addr, err)
	}

	g.server = &http.Server{Addr: addr, Handler: g.Handler()}
	go func() {
		if err := g.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error("Gateway server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting connections, detaches from the event bus and
// closes every open connection.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}

	var err error
	if g.server != nil {
		err = g.server.Shutdown(ctx)
	}

	g.mu.Lock()
	conns := lo.Keys(g.conns)
	g.conns = make(map[*conn]struct{})
	g.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	return err
}

func (g *Gateway) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// Admission control happens before the connection reaches Open:
	// a rejected socket is never registered anywhere.
	g.mu.Lock()
	if len(g.conns) >= g.opts.MaxConnections {
		g.mu.Unlock()
		g.log.Warn("Connection rejected, server at capacity", "remote", r.RemoteAddr)
		_ = ws.WriteMessage(websocket.TextMessage, encodeError(errServerBusy))
		_ = ws.Close()
		return
	}
	c := newConn(ws, g.log, g.opts)
	g.conns[c] = struct{}{}
	g.mu.Unlock()

	go c.writeLoop()
	g.readLoop(c)
}

// readLoop drives one connection until its transport closes, then drops
// every trace of it.
func (g *Gateway) readLoop(c *conn) {
	defer g.drop(c)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		g.handleIncoming(c, raw)
	}
}

// handleIncoming runs the admission steps that must observe the raw
// message synchronously, then processes the request on its own goroutine
// so several requests of one connection can be in flight at once.
func (g *Gateway) handleIncoming(c *conn, raw []byte) {
	// Oversize frames are rejected before they cost in-flight or rate
	// budget.
	if int64(len(raw)) > g.opts.MaxBufferedBytes {
		c.reply(encodeError(errPayloadTooLarge))
		return
	}

	release, ok := c.inflight.TryAcquire()
	if !ok {
		c.reply(encodeError(errTooManyInFlight))
		return
	}

	go func() {
		defer release()
		g.process(c, raw)
	}()
}

func (g *Gateway) process(c *conn, raw []byte) {
	if !c.window.Allow(time.Now()) {
		c.reply(encodeError(errRateLimit))
		return
	}

	var in inboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		c.reply(encodeError(errInvalidJSON))
		return
	}
	if err := g.validate.Struct(in); err != nil {
		c.reply(encodeError(errInvalidPayload))
		return
	}

	messageID, err := g.chat.SendMessage(g.baseCtx, chat.SendMessage{
		RoomID:   in.RoomID,
		SenderID: in.SenderID,
		Content:  in.Message,
		AckID:    in.AckID,
	})
	if err != nil {
		// No ack: the client request is dropped after a persistence
		// failure and the client is expected to retry with the same ackId.
		g.log.Error("Message dispatch failed", "roomId", in.RoomID, "error", err)
		return
	}

	c.reply(encodeAck(in.AckID, messageID))
}

// broadcast relays one bus event to every open connection, applying the
// backpressure policy per connection. Dropping a frame is silent towards
// the client and only logged here.
func (g *Gateway) broadcast(_ context.Context, evt event.DomainEvent) {
	frame := mustEncode(broadcastFrame{Type: evt.Type, Payload: evt.Payload})

	g.mu.Lock()
	conns := lo.Keys(g.conns)
	g.mu.Unlock()

	for _, c := range conns {
		if !c.enqueue(frame, g.opts.MaxBufferedBytes) {
			g.log.Warn("Broadcast dropped, slow consumer",
				"type", evt.Type, "bufferedBytes", c.buffered.Load())
		}
	}
}

func (g *Gateway) drop(c *conn) {
	g.mu.Lock()
	delete(g.conns, c)
	g.mu.Unlock()
	c.close()
}

// OpenConnections reports the size of the open set.
func (g *Gateway) OpenConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}
