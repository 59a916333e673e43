// Package dispatch provides the execution contexts change notifications are
// marshaled onto.
//
// A Loop is a FIFO queue drained by its owner, either continuously with Run
// or once per frame with RunPending. A Serial is a Loop drained by its own
// goroutine. Inline runs work on the goroutine that dispatched it.
package dispatch

import (
	"context"
	"sync"
)

// Dispatcher schedules fn on some execution context.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Inline runs work synchronously on the dispatching goroutine.
var Inline Dispatcher = DispatcherFunc(func(fn func()) { fn() })

// Loop is a single-consumer work queue.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop creates an empty, open Loop.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Dispatch enqueues fn. Work posted after Close is dropped.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// RunPending runs the work queued at the time of the call and returns how
// many items ran. Work dispatched while it runs waits for the next call.
func (l *Loop) RunPending() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Run drains the queue until ctx is cancelled or the loop is closed.
// Returns ctx.Err() on cancellation and nil on Close.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.RunPending()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.wake:
		}
	}
}

// Pending returns the number of queued items.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close discards queued work and stops Run. Safe to call multiple times,
// including from work running on the loop.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// Done is closed once the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Serial runs dispatched work one item at a time on a dedicated goroutine.
type Serial struct {
	loop *Loop
}

// NewSerial starts a Serial dispatcher.
func NewSerial() *Serial {
	s := &Serial{loop: NewLoop()}
	go func() {
		_ = s.loop.Run(context.Background())
	}()
	return s
}

// Dispatch enqueues fn.
func (s *Serial) Dispatch(fn func()) {
	s.loop.Dispatch(fn)
}

// Close stops the worker goroutine without waiting for it.
func (s *Serial) Close() {
	s.loop.Close()
}
