package util

import (
	"sync"
	"time"
)

// Debouncer is a restartable idle timer. Reset pushes the deadline back by
// the configured duration; C fires only after a full quiet interval with no
// Reset. The bridge uses it to flush buffered AI text once fragments stop
// arriving:
//
//	debouncer := NewDebouncer(time.Second)
//	defer debouncer.Stop()
//
//	for {
//	    select {
//	    case fragment := <-fragments:
//	        buffer(fragment)
//	        debouncer.Reset()
//	    case <-debouncer.C():
//	        flush()
//	    }
//	}
type Debouncer struct {
	duration time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	stopped  bool
}

// NewDebouncer creates a Debouncer whose timer starts running immediately.
func NewDebouncer(duration time.Duration) *Debouncer {
	return &Debouncer{
		duration: duration,
		timer:    time.NewTimer(duration),
	}
}

// Reset pushes the deadline back by the full duration. After Stop it is a
// no-op.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	// Drain a fired-but-unread timer before rearming, or the stale tick
	// would satisfy the next wait instantly.
	if !d.timer.Stop() {
		select {
		case <-d.timer.C:
		default:
		}
	}
	d.timer.Reset(d.duration)
}

// C returns the channel that fires when the idle interval elapses.
func (d *Debouncer) C() <-chan time.Time {
	return d.timer.C
}

// Stop halts the timer and disables further resets. Safe to call more than
// once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.stopped {
		d.timer.Stop()
		d.stopped = true
	}
}
