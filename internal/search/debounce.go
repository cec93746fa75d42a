// Package search provides the debounced symbol-lookup used by the
// autocomplete prompt. A lookup is a cancellable scheduled task keyed by the
// latest input; newer keystrokes or teardown cancel anything pending.
package search

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is how long input must be quiet before a search fires.
const DefaultQuietPeriod = 300 * time.Millisecond

// Debouncer coalesces a burst of triggers into the single most recent one.
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period. A
// non-positive delay falls back to DefaultQuietPeriod.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultQuietPeriod
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet period, cancelling any pending task.
// fn runs on a timer goroutine.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending task. Safe to call repeatedly and after Trigger.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
