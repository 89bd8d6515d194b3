// Package async holds the small coordination primitives the engine relies
// on: trailing-edge debouncing for bursty UI events and a single-flight gate
// for pagination expansion.
package async

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single trailing invocation.
// Each Trigger cancels the previously scheduled call and schedules a new one
// after the configured delay.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given trailing delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the delay, replacing any pending invocation.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending invocation.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Gate is a single-flight guard: TryAcquire succeeds only when no holder is
// active, and Release reopens it. A second pagination expansion must not
// start before the first completes.
type Gate struct {
	mu   sync.Mutex
	held bool
}

// TryAcquire takes the gate if it is free, reporting whether it did.
func (g *Gate) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return false
	}
	g.held = true
	return true
}

// Release reopens the gate.
func (g *Gate) Release() {
	g.mu.Lock()
	g.held = false
	g.mu.Unlock()
}
