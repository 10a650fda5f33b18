// Package authlog writes authentication outcomes to the append-only text
// log that the offline analyzer consumes, in exactly the line grammar the
// analyzer's patterns match.
package authlog

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timestampLayout  = "2006-01-02 15:04:05"
	defaultComponent = "credgate.gate"
)

// Recorder appends one line per recorded outcome. Safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	component string
	now       func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewFile creates a Recorder over a size-rotated log file.
func NewFile(path string, maxSizeMB, maxBackups int, opts ...Option) *Recorder {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	return New(lj, append(opts, withCloser(lj))...)
}

// New creates a Recorder over an arbitrary writer.
func New(w io.Writer, opts ...Option) *Recorder {
	r := &Recorder{
		w:         w,
		component: defaultComponent,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func withCloser(c io.Closer) Option {
	return func(r *Recorder) { r.closer = c }
}

// AuthFailed records a failed authentication attempt.
func (r *Recorder) AuthFailed(username string) {
	r.write("Failed authentication attempt for user: " + username)
}

// AuthTimeout records an authentication that timed out against the store.
func (r *Recorder) AuthTimeout(username string) {
	r.write("Authentication timeout for user: " + username)
}

// RateLimited records an attempt rejected by the rate limiter.
func (r *Recorder) RateLimited(username string) {
	r.write("Rate limited authentication attempt for user: " + username)
}

// Close releases the underlying file, if any.
func (r *Recorder) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Recorder) write(phrase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Timestamps are written in UTC because the analyzer parses them back
	// as UTC instants. Write failures are swallowed: outcome logging must
	// never fail an authentication call.
	fmt.Fprintf(r.w, "%s [ERROR] %s: %s\n", r.now().UTC().Format(timestampLayout), r.component, phrase)
}
