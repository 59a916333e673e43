package monitor

import (
	"sync"
	"time"
)

// debouncer holds at most one pending delay. Each touch replaces it, and a
// delay only releases its Change if no newer touch or stop happened since it
// was scheduled. time.Timer.Stop cannot recall a callback that has already
// started, so expiry compares generations instead of timer handles.
type debouncer struct {
	quiet   time.Duration
	release func(Change)
	now     func() time.Time

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	pending Change
	stopped bool
}

func newDebouncer(quiet time.Duration, release func(Change)) *debouncer {
	return &debouncer{
		quiet:   quiet,
		release: release,
		now:     time.Now,
	}
}

// touch records a qualifying event and restarts the quiet period from now.
func (d *debouncer) touch(ev rawEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.pending.Events == 0 {
		d.pending.First = d.now()
	}
	d.pending.Path = ev.Path
	d.pending.Kind |= ev.Kind
	d.pending.Events++

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.expire(gen) })
}

// expire runs on the timer goroutine.
func (d *debouncer) expire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	change := d.pending
	change.At = d.now()
	d.pending = Change{}
	d.timer = nil
	d.mu.Unlock()

	d.release(change)
}

// stop cancels the pending delay. Later touches are ignored.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = Change{}
}

// inFlight reports whether a delay is pending.
func (d *debouncer) inFlight() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
