package reactive

import (
	"context"
	"sync"
)

// Progressable is an observable cell that additionally tracks, per
// mutation, whether every live subscriber has finished reacting to it.
// WhenAllProcessed resolves once every subscriber's handler for every
// Set call so far has returned — the barrier the negotiation driver uses
// to wait out an ICE restart before generating an offer (spec §4.1, §4.2).
type Progressable[T any] struct {
	mu      sync.Mutex
	value   T
	subs    map[int]chan *Item[T]
	next    int
	pending int
	drained chan struct{}
}

// NewProgressable returns a Progressable holding the given initial value.
func NewProgressable[T any](initial T) *Progressable[T] {
	p := &Progressable[T]{
		value:   initial,
		subs:    make(map[int]chan *Item[T]),
		drained: make(chan struct{}),
	}
	close(p.drained)
	return p
}

// Get returns the current value.
func (p *Progressable[T]) Get() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set replaces the value and delivers a fresh completion token to every
// subscriber. Unlike Cell, successive Set calls never coalesce — each
// mutation must be individually observed to completion (spec §5).
func (p *Progressable[T]) Set(v T) {
	p.mu.Lock()
	p.value = v

	if len(p.subs) == 0 {
		p.mu.Unlock()
		return
	}

	if p.pending == 0 {
		p.drained = make(chan struct{})
	}
	p.pending += len(p.subs)

	chans := make([]chan *Item[T], 0, len(p.subs))
	for _, ch := range p.subs {
		chans = append(chans, ch)
	}
	p.mu.Unlock()

	for _, ch := range chans {
		item := &Item[T]{Value: v}
		item.done = func() { p.ack() }
		ch <- item
	}
}

// ack folds the pending decrement and the drained-channel close under the
// same lock as Set's pending increment/reset, so a concurrent Set can never
// install a fresh drained channel between this ack's check and its close.
func (p *Progressable[T]) ack() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.pending == 0 {
		close(p.drained)
	}
}

// Subscribe registers a subscriber. Its first delivery is the current
// value, already marked done (it is not a tracked mutation); every
// subsequent delivery corresponds 1:1 to a Set call and must have Done
// called on it for WhenAllProcessed to ever resolve.
func (p *Progressable[T]) Subscribe() *Subscription[*Item[T]] {
	p.mu.Lock()
	id := p.next
	p.next++
	ch := make(chan *Item[T], subBuffer)
	initial := &Item[T]{Value: p.value}
	initial.once.Do(func() {}) // pre-armed: Done is a no-op
	ch <- initial
	p.subs[id] = ch
	p.mu.Unlock()

	return &Subscription[*Item[T]]{
		ch: ch,
		unsubscribe: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if existing, ok := p.subs[id]; ok {
				close(existing)
				delete(p.subs, id)
			}
		},
	}
}

// WhenAllProcessed blocks until every subscriber has acknowledged every
// Set call made up to this point, or ctx is done.
func (p *Progressable[T]) WhenAllProcessed(ctx context.Context) error {
	return p.Barrier()(ctx)
}

// Barrier snapshots the current drain state immediately and returns a
// function that waits for that drain to complete, i.e. for the pending
// count to next reach zero. This is the "acquire a wait-for-ice-restart
// handle" step of spec §4.2 T1: the negotiation driver grabs the handle
// before branching on role, so a restart that was already in flight at
// that instant is always waited on. Set calls made while that drain is
// still pending join it and are waited on as well; Set calls made after
// it completed do not affect the returned function.
func (p *Progressable[T]) Barrier() func(ctx context.Context) error {
	p.mu.Lock()
	ch := p.drained
	p.mu.Unlock()

	return func(ctx context.Context) error {
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ErrCancelled
		}
	}
}
