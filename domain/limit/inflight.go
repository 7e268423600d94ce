package limit

import "sync"

// InFlight caps the number of concurrently processing requests.
//
// Acquire returns a release function that must be called when processing
// finishes, success or failure. Release is idempotent so a slot can never
// be freed twice and the counter never goes negative.
type InFlight struct {
	mu  sync.Mutex
	max int
	n   int
}

func NewInFlight(max int) *InFlight {
	return &InFlight{max: max}
}

// TryAcquire reserves one slot without blocking. When the cap is reached
// it reports false and the request must be dropped, not queued.
func (f *InFlight) TryAcquire() (release func(), ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.n >= f.max {
		return nil, false
	}
	f.n++

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.n--
			f.mu.Unlock()
		})
	}, true
}

// Current reports the number of held slots.
func (f *InFlight) Current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}
