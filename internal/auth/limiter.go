package auth

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"
)

// windowState tracks one client's request count within the current window.
type windowState struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request limiter keyed by client identity.
// State for a client is created on its first request, reset when its window
// expires, and purged by the background sweep once stale.
type Limiter struct {
	window time.Duration
	max    int

	mu     sync.Mutex
	states map[string]*windowState
	now    func() time.Time // injectable for deterministic tests
}

// NewLimiter creates a Limiter allowing max requests per window per client.
func NewLimiter(window time.Duration, max int) *Limiter {
	return &Limiter{
		window: window,
		max:    max,
		states: make(map[string]*windowState),
		now:    time.Now,
	}
}

// Allow records one request from the client and reports whether it is within
// the ceiling. When the ceiling is exceeded, retryAfter is the number of
// seconds (rounded up, at least 1) until the client's window resets.
func (l *Limiter) Allow(client string) (ok bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st := l.states[client]
	if st == nil || !now.Before(st.resetAt) {
		l.states[client] = &windowState{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}

	st.count++
	if st.count > l.max {
		secs := int(math.Ceil(st.resetAt.Sub(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		return false, secs
	}
	return true, 0
}

// Purge drops state for clients whose window expired before now and returns
// the number of entries removed.
func (l *Limiter) Purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for client, st := range l.states {
		if !now.Before(st.resetAt) {
			delete(l.states, client)
			removed++
		}
	}
	return removed
}

// Run starts the background purge loop, sweeping once per window length to
// bound memory. It blocks until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := l.Purge(now); n > 0 {
				slog.Debug("auth: purged expired rate-limit windows", "count", n)
			}
		}
	}
}
