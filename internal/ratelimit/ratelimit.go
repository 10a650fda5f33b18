// Package ratelimit implements a per-identity sliding-window attempt
// counter held entirely in memory. It is the fast, ephemeral first line of
// defense in front of the credential store's own persisted lockout.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultWindow      = 5 * time.Minute
	DefaultMaxAttempts = 5
)

// Limiter bounds login attempts per identity within a trailing time window.
// State is process-local and lost on restart.
type Limiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxAttempts int
	attempts    map[string][]time.Time
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. Non-positive window or maxAttempts fall back to
// the defaults.
func New(window time.Duration, maxAttempts int, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	l := &Limiter{
		window:      window,
		maxAttempts: maxAttempts,
		attempts:    make(map[string][]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsLimited reports whether the identity has exhausted its attempt budget,
// and if so, how long until the oldest retained attempt exits the window.
// Stale attempts are pruned as a side effect. An identity never seen is
// never limited.
func (l *Limiter) IsLimited(identity string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	ts := l.prune(identity, now)

	if len(ts) >= l.maxAttempts {
		retryAfter := ts[0].Add(l.window).Sub(now)
		if retryAfter < 0 {
			// Clock went backwards between prune and here; don't report
			// a negative wait.
			retryAfter = 0
		}
		return true, retryAfter
	}
	return false, 0
}

// RecordAttempt appends the current timestamp to the identity's window,
// creating it on first contact.
func (l *Limiter) RecordAttempt(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts[identity] = append(l.attempts[identity], l.now())
}

// Clear removes the identity's attempt history entirely. Idempotent.
func (l *Limiter) Clear(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, identity)
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration { return l.window }

// MaxAttempts returns the configured attempt budget.
func (l *Limiter) MaxAttempts() int { return l.maxAttempts }

// prune drops timestamps older than the window and returns the retained,
// chronologically ordered slice. Caller must hold the lock.
func (l *Limiter) prune(identity string, now time.Time) []time.Time {
	ts, ok := l.attempts[identity]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.window)
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.attempts, identity)
		return nil
	}
	l.attempts[identity] = kept
	return kept
}
