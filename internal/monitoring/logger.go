// Package monitoring holds the process-wide diagnostic logger and helpers
// for keeping hot-path logging bounded.
package monitoring

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Throttle drops log lines that arrive faster than the configured rate.
// Suppressed lines are counted and reported with the next line that passes.
type Throttle struct {
	limiter *rate.Limiter

	mu         sync.Mutex
	suppressed int
}

// NewThrottle allows one line per interval with the given burst. A
// non-positive interval disables throttling.
func NewThrottle(every time.Duration, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, burst)}
}

// Logf writes through the package logger when the limiter allows it and
// reports whether the line was written.
func (t *Throttle) Logf(format string, v ...interface{}) bool {
	if t == nil {
		Logf(format, v...)
		return true
	}
	if !t.limiter.Allow() {
		t.mu.Lock()
		t.suppressed++
		t.mu.Unlock()
		return false
	}

	t.mu.Lock()
	dropped := t.suppressed
	t.suppressed = 0
	t.mu.Unlock()

	if dropped > 0 {
		Logf(format+" (+%d suppressed)", append(v, dropped)...)
	} else {
		Logf(format, v...)
	}
	return true
}

// Suppressed returns the number of lines dropped since the last written one.
func (t *Throttle) Suppressed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suppressed
}
