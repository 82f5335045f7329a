// Package ratelimit provides per-client fixed-window admission control for
// the public HTTP endpoints: at most maxRequests per client per window.
package ratelimit

import (
	"sync"
	"time"
)

// clientWindow tracks one client's current window
type clientWindow struct {
	count       int
	windowStart time.Time
}

// Limiter is a bounded concurrent per-client limiter. Entries idle past the
// window are removed by Evict, which the reaper calls on its sweep tick so
// the map cannot grow without bound.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	window  time.Duration
	max     int

	now func() time.Time // injectable for tests
}

// New creates a limiter allowing max requests per window per client.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		clients: make(map[string]*clientWindow),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Allow records one request for clientID and reports whether it is admitted.
func (l *Limiter) Allow(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	cw, ok := l.clients[clientID]
	if !ok {
		l.clients[clientID] = &clientWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(cw.windowStart) > l.window {
		cw.count = 1
		cw.windowStart = now
		return true
	}

	cw.count++
	return cw.count <= l.max
}

// Evict drops entries whose window expired before now and returns how many
// were removed.
func (l *Limiter) Evict(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, cw := range l.clients {
		if now.Sub(cw.windowStart) > l.window {
			delete(l.clients, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
