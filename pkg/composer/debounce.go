package composer

import (
	"sync"
	"time"
)

// debouncer runs the first call immediately and coalesces the calls that
// follow within wait of each other into the last one.
type debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	pending func()
}

func newDebouncer(wait time.Duration) *debouncer {
	return &debouncer{wait: wait}
}

// Do runs fn now when the debouncer is idle, otherwise replaces the pending call.
func (d *debouncer) Do(fn func()) {
	d.mu.Lock()
	idle := d.timer == nil
	if !idle {
		d.timer.Stop()
		d.pending = fn
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
	d.mu.Unlock()

	if idle {
		fn()
	}
}

func (d *debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	fn := d.pending
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Flush runs the pending call, if any, without waiting.
func (d *debouncer) Flush() {
	if fn := d.stop(); fn != nil {
		fn()
	}
}

// Cancel drops the pending call.
func (d *debouncer) Cancel() {
	d.stop()
}

func (d *debouncer) stop() func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	return fn
}
