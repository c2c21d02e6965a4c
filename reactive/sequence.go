package reactive

import (
	"context"
	"sync"
)

// subBuffer is the per-subscriber channel capacity for Sequence pushes. The
// orchestrator assumes, like the rest of this package, that the event
// ingest rate is far below the cost of the SDP operations consuming it —
// see spec §5 "Backpressure" — so a generous fixed buffer never fills in
// practice instead of plumbing a real unbounded queue.
const subBuffer = 256

// Item is a value pushed onto a Sequence, paired with a completion token.
// The receiving task must call Done exactly once when it has fully
// processed Value; WhenPushCompleted will not resolve until every
// subscriber has done so for every value pushed so far.
type Item[T any] struct {
	Value T
	done  func()
	once  sync.Once
}

// Done marks this item's delivery to this subscriber as processed.
func (i *Item[T]) Done() {
	i.once.Do(i.done)
}

// Sequence is an observable, append-only ordered collection.
type Sequence[T any] struct {
	mu      sync.Mutex
	items   []T
	subs    map[int]chan *Item[T]
	next    int
	pending int
	drained chan struct{}
}

// NewSequence returns an empty Sequence.
func NewSequence[T any]() *Sequence[T] {
	s := &Sequence[T]{
		subs:    make(map[int]chan *Item[T]),
		drained: make(chan struct{}),
	}
	close(s.drained) // nothing pending yet
	return s
}

// Push appends v and delivers it to every current on-push subscriber. Each
// delivery mints its own completion token: two pushes in the same
// synchronous batch each get their own barrier, per spec §9.
func (s *Sequence[T]) Push(v T) {
	s.mu.Lock()
	s.items = append(s.items, v)

	if len(s.subs) == 0 {
		s.mu.Unlock()
		return
	}

	if s.pending == 0 {
		s.drained = make(chan struct{})
	}
	s.pending += len(s.subs)

	chans := make([]chan *Item[T], 0, len(s.subs))
	for _, ch := range s.subs {
		chans = append(chans, ch)
	}
	s.mu.Unlock()

	for _, ch := range chans {
		item := &Item[T]{Value: v}
		item.done = func() { s.ack() }
		ch <- item
	}
}

// ack folds the pending decrement and the drained-channel close under the
// same lock as Push's pending increment/reset, so a concurrent Push or
// OnPush can never install a fresh drained channel between this ack's check
// and its close.
func (s *Sequence[T]) ack() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.pending == 0 {
		close(s.drained)
	}
}

// Snapshot returns a copy of the items pushed so far, in push order.
func (s *Sequence[T]) Snapshot() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of items pushed so far.
func (s *Sequence[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// OnPush registers a subscriber that first replays every item already
// pushed before this call, then receives every item pushed from now on —
// each wrapped in its own completion token, the same seeded-then-live
// shape Cell.Subscribe gives its current value. A subscriber that joins
// after the peer's initial tracks were pushed (spec §4.2 T4/T5 subscribing
// after snapshot.NewPeer pre-populated Senders/Receivers) must still see
// them, or add_transceiver would never run for a peer's starting tracks.
func (s *Sequence[T]) OnPush() *Subscription[*Item[T]] {
	s.mu.Lock()
	id := s.next
	s.next++

	existing := make([]T, len(s.items))
	copy(existing, s.items)

	ch := make(chan *Item[T], subBuffer+len(existing))

	if len(existing) > 0 {
		if s.pending == 0 {
			s.drained = make(chan struct{})
		}
		s.pending += len(existing)
	}

	s.subs[id] = ch
	s.mu.Unlock()

	for _, v := range existing {
		item := &Item[T]{Value: v}
		item.done = func() { s.ack() }
		ch <- item
	}

	return &Subscription[*Item[T]]{
		ch: ch,
		unsubscribe: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if existing, ok := s.subs[id]; ok {
				close(existing)
				delete(s.subs, id)
			}
		},
	}
}

// WhenPushCompleted blocks until every subscriber that received every item
// pushed up to this call has called Done on it, or ctx is done.
func (s *Sequence[T]) WhenPushCompleted(ctx context.Context) error {
	s.mu.Lock()
	ch := s.drained
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ErrCancelled
	}
}
