package recorder

import (
	"sync"
	"time"
)

// Deferred runs fn once after delay. Rescheduling restarts the delay, and a
// cancelled or superseded timer never runs fn, even if it already expired.
type Deferred struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewDeferred creates an unscheduled deferred action
func NewDeferred(delay time.Duration, fn func()) *Deferred {
	return &Deferred{delay: delay, fn: fn}
}

// Schedule (re)starts the countdown
func (d *Deferred) Schedule() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Cancel stops a pending countdown and reports whether one was pending
func (d *Deferred) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := d.timer != nil
	if pending {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	return pending
}

// Pending reports whether a countdown is running
func (d *Deferred) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Deferred) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}
