// Package snapshot holds the desired-state tree (Room → Peer → Track) that
// the event handler facade mutates and the negotiation tasks observe. Its
// behaviour is limited to construction, id lookups (FindPeer, FindSender,
// FindReceiver) and the pure NegotiationState transition table; other
// packages otherwise work through the reactive fields (spec §3).
package snapshot

import (
	"github.com/inlivedev/negotiator/reactive"
	"github.com/inlivedev/negotiator/signal"
)

// Track is the snapshot of one Sender or Receiver. Its id is unique within
// its owning Peer across both the senders and receivers sequences
// (invariant 1, spec §3).
type Track struct {
	ID        uint32
	Direction signal.Direction
	IsMuted   *reactive.Progressable[bool]
}

// NewTrack constructs a Track snapshot in the given initial mute state.
func NewTrack(id uint32, dir signal.Direction, isMuted bool) *Track {
	return &Track{
		ID:        id,
		Direction: dir,
		IsMuted:   reactive.NewProgressable(isMuted),
	}
}
