// Package observer provides scoped observer registration.
//
// Subscribe returns a Subscription that the owner closes on teardown,
// typically with defer, so no callback outlives the code that registered it.
package observer

import (
	"sync"
	"sync/atomic"
)

// Hub fans values out to its subscribers in registration order.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs []*Subscription[T]
}

// Subscription is a registered observer.
type Subscription[T any] struct {
	hub    *Hub[T]
	fn     func(T)
	closed atomic.Bool
}

// NewHub creates an empty Hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{}
}

// Subscribe registers fn. A nil fn yields an already-closed subscription.
func (h *Hub[T]) Subscribe(fn func(T)) *Subscription[T] {
	s := &Subscription[T]{hub: h, fn: fn}
	if fn == nil {
		s.closed.Store(true)
		return s
	}

	h.mu.Lock()
	h.subs = append(h.subs, s)
	h.mu.Unlock()
	return s
}

// Publish delivers v to every open subscription. Subscribers run on the
// caller's goroutine, outside the hub lock, so they may subscribe or close.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	snapshot := make([]*Subscription[T], len(h.subs))
	copy(snapshot, h.subs)
	h.mu.RUnlock()

	for _, s := range snapshot {
		if s.closed.Load() {
			continue
		}
		s.fn(v)
	}
}

// Len returns the number of open subscriptions.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close unregisters the subscription. No delivery starts after Close
// returns. Safe to call multiple times.
func (s *Subscription[T]) Close() {
	if s.closed.Swap(true) {
		return
	}

	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, sub := range h.subs {
		if sub == s {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// Closed reports whether Close has been called.
func (s *Subscription[T]) Closed() bool {
	return s.closed.Load()
}
