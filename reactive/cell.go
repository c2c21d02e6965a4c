// Package reactive provides the observable primitives the negotiation core
// is built on: a single-value cell, an append-only sequence, and a
// progressable variant of the cell. The sequence and the progressable cell
// both let a waiter block until every currently queued mutation has been
// fully processed by every subscriber.
package reactive

import (
	"context"
	"sync"
)

// Cell is an observable holder of a single value of type T. Every
// subscriber first observes the current value, then one further value per
// Set/Mutate call that actually changes it (equality is Go's == on
// comparable T). Set never blocks on subscriber delivery.
type Cell[T comparable] struct {
	mu    sync.Mutex
	value T
	subs  map[int]chan T
	next  int
}

// NewCell returns a Cell holding the given initial value.
func NewCell[T comparable](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[int]chan T),
	}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value. Subscribers that have not yet drained their
// buffer for a prior value may miss an intermediate value's channel slot is
// full; callers of Subscribe are expected to keep up, as is the case for
// the negotiation driver's single-item-at-a-time loops.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == c.value {
		return
	}
	c.value = v
	c.broadcastLocked(v)
}

// Mutate applies f to a copy of the current value and stores the result,
// notifying subscribers if it changed.
func (c *Cell[T]) Mutate(f func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nv := f(c.value)
	if nv == c.value {
		return
	}
	c.value = nv
	c.broadcastLocked(nv)
}

func (c *Cell[T]) broadcastLocked(v T) {
	for id, ch := range c.subs {
		select {
		case ch <- v:
		default:
			// Slow subscriber: drop the oldest pending value rather than
			// block Set, then retry once so the latest value always wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
		c.subs[id] = ch
	}
}

// Subscription is a live view onto a Cell or Sequence. Call Unsubscribe
// once the caller no longer needs updates.
type Subscription[T any] struct {
	ch          <-chan T
	unsubscribe func()
}

// C returns the subscription's channel.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Unsubscribe detaches the subscription; it is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() { s.unsubscribe() }

// Subscribe registers a new subscriber and immediately enqueues the
// current value as its first observation.
func (c *Cell[T]) Subscribe() *Subscription[T] {
	c.mu.Lock()
	id := c.next
	c.next++
	ch := make(chan T, 1)
	ch <- c.value
	c.subs[id] = ch
	c.mu.Unlock()

	return &Subscription[T]{
		ch: ch,
		unsubscribe: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.subs[id]; ok {
				close(existing)
				delete(c.subs, id)
			}
		},
	}
}

// When blocks until pred holds against the value at some observation
// point, including the current one, or ctx is done. Observations happen in
// order but intermediate values that fail pred are silently skipped.
func (c *Cell[T]) When(ctx context.Context, pred func(T) bool) error {
	if pred(c.Get()) {
		return nil
	}

	sub := c.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case v, ok := <-sub.C():
			if !ok {
				return ErrCancelled
			}
			if pred(v) {
				return nil
			}
		case <-ctx.Done():
			return ErrCancelled
		}
	}
}

// WhenEqual is a convenience wrapper around When for equality checks.
func (c *Cell[T]) WhenEqual(ctx context.Context, v T) error {
	return c.When(ctx, func(cur T) bool { return cur == v })
}
