// Package progress holds the status line shown while a recompute runs.
package progress

import "sync"

// Idle is the status reported when no producer is set.
const Idle = "Loading"

// Sink holds a status producer that is polled by readers. Producers are
// closures over live counters, so the text stays current without pushes.
type Sink struct {
	mu     sync.RWMutex
	status func() string
}

// NewSink returns a Sink reporting Idle.
func NewSink() *Sink {
	return &Sink{}
}

// Set installs a new status producer. A nil producer behaves like Clear.
func (s *Sink) Set(fn func() string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.status = fn
	s.mu.Unlock()
}

// SetText installs a fixed status line.
func (s *Sink) SetText(text string) {
	s.Set(func() string { return text })
}

// Clear resets the sink to Idle.
func (s *Sink) Clear() {
	s.Set(nil)
}

// Status evaluates the current producer.
func (s *Sink) Status() string {
	if s == nil {
		return Idle
	}
	s.mu.RLock()
	fn := s.status
	s.mu.RUnlock()
	if fn == nil {
		return Idle
	}
	return fn()
}
