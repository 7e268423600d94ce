// Package limit holds per-connection throttling rules.
//
// The types here are transport-free on purpose: the gateway applies them,
// but the rules themselves know nothing about websockets or redis.
package limit

import (
	"sync"
	"time"
)

// FixedWindow is a fixed-window request counter.
//
// The first request of a window (or of an expired window) resets the count
// to 1 and is allowed. Every later request inside the window increments the
// count, rejected or not: a client that keeps flooding while rate limited
// does not get a fresh allowance until the window rolls over.
type FixedWindow struct {
	mu              sync.Mutex
	window          time.Duration
	max             int
	count           int
	windowStartedAt time.Time
}

func NewFixedWindow(window time.Duration, max int) *FixedWindow {
	return &FixedWindow{window: window, max: max}
}

// Allow records one request at now and reports whether it fits the window.
// The read-compare-increment sequence is atomic under the mutex.
func (w *FixedWindow) Allow(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.windowStartedAt.IsZero() || now.Sub(w.windowStartedAt) > w.window {
		w.windowStartedAt = now
		w.count = 1
		return true
	}

	w.count++
	return w.count <= w.max
}
