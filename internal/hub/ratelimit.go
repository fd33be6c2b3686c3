package hub

import (
	"sync"
	"time"
)

// RateLimiter caps inbound envelopes per connection with a fixed
// minute window. State is dropped when the connection unregisters, so
// the map never outgrows the set of live connections.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	windows map[string]*window
}

type window struct {
	count int
	start time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limit:   perMinute,
		windows: make(map[string]*window),
	}
}

// Allow reports whether the connection may submit another envelope in
// the current minute window.
func (rl *RateLimiter) Allow(connID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	w, exists := rl.windows[connID]
	if !exists {
		rl.windows[connID] = &window{count: 1, start: now}
		return true
	}

	if now.Sub(w.start) >= time.Minute {
		w.count = 1
		w.start = now
		return true
	}

	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// Forget drops tracking state for a connection that went away.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, connID)
}
