package gateway

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"chat-gateway/domain/limit"
)

// conn is the state of one open client connection. It is created after
// admission, mutated only by its own request path and writer goroutine,
// and dropped from every registry when the transport closes.
type conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	window   *limit.FixedWindow
	inflight *limit.InFlight

	send     chan []byte
	buffered atomic.Int64 // bytes sitting in send, backpressure accounting

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, log *slog.Logger, opts Options) *conn {
	return &conn{
		ws:       ws,
		log:      log,
		window:   limit.NewFixedWindow(opts.RateLimitWindow, opts.RateLimitMax),
		inflight: limit.NewInFlight(opts.MaxInFlight),
		send:     make(chan []byte, opts.SendQueueLength),
		done:     make(chan struct{}),
	}
}

// reply queues a direct response (ack or error) for the writer goroutine.
// Responses bypass the broadcast backpressure threshold but never block
// the caller; with the queue full the frame is dropped and logged.
func (c *conn) reply(frame []byte) {
	c.buffered.Add(int64(len(frame)))
	select {
	case c.send <- frame:
	default:
		c.buffered.Add(-int64(len(frame)))
		c.log.Warn("Response dropped, send queue full")
	}
}

// enqueue queues a broadcast frame unless the connection's outbound
// buffer already holds more than maxBuffered bytes. Reports whether the
// frame was accepted; a rejected frame is simply dropped.
func (c *conn) enqueue(frame []byte, maxBuffered int64) bool {
	if c.buffered.Load() > maxBuffered {
		return false
	}
	c.buffered.Add(int64(len(frame)))
	select {
	case c.send <- frame:
		return true
	default:
		c.buffered.Add(-int64(len(frame)))
		return false
	}
}

// writeLoop is the single writer of the underlying websocket. A write
// failure only affects this connection; the loop stops and the read side
// observes the close.
func (c *conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.buffered.Add(-int64(len(frame)))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn("Connection write failed", "error", err)
				c.close()
				return
			}
		}
	}
}

// close tears the transport down. Idempotent.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}
