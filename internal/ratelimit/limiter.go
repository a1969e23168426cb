// Package ratelimit implements a sliding-window call counter keyed by
// (user, action).
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks call timestamps per (user, action) pair within a trailing
// window. Check and record are deliberately separate: a caller checks,
// performs a possibly-failing side effect, and records only on success.
type Limiter struct {
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		calls: make(map[string][]time.Time),
		now:   time.Now,
	}
}

// CheckLimit prunes expired entries for the key and reports whether the
// remaining count is below maxCalls. It does not record a call.
func (l *Limiter) CheckLimit(userID, action string, maxCalls int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userID + ":" + action
	recent := l.prune(key, window)
	return len(recent) < maxCalls
}

// RecordCall appends a call timestamp for the key.
func (l *Limiter) RecordCall(userID, action string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := userID + ":" + action
	l.calls[key] = append(l.calls[key], l.now())
}

// prune drops entries older than the window. Caller holds the lock.
func (l *Limiter) prune(key string, window time.Duration) []time.Time {
	cutoff := l.now().Add(-window)
	recent := l.calls[key]
	filtered := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		delete(l.calls, key)
		return nil
	}
	l.calls[key] = filtered
	return filtered
}
