package snapshot

import (
	"sync"

	"github.com/inlivedev/negotiator/reactive"
	"github.com/inlivedev/negotiator/signal"
)

// Peer is the desired state of one PeerConnection: its sender/receiver
// tracks, the pulse requesting an ICE restart, and the negotiation
// role/state pair the driver tasks coordinate on (spec §3).
type Peer struct {
	ID string

	Senders   *reactive.Sequence[*Track]
	Receivers *reactive.Sequence[*Track]

	RestartICE *reactive.Progressable[bool]

	NegotiationRole  *reactive.Cell[*signal.NegotiationRole]
	NegotiationState *reactive.Cell[NegotiationState]
	RemoteSDPOffer   *reactive.Cell[*string]

	// ApplyMu serializes one event's worth of mutations against any reader
	// that must observe them as a single atomic batch, standing in for the
	// run-to-completion guarantee the original single-threaded scheduler
	// gave this for free: the event handler holds it across every change
	// in a TrackUpdate plus the trailing negotiation_role set, and T4 takes
	// it before reading negotiation_role so it can never observe a track
	// push without the role change that was meant to accompany it.
	ApplyMu sync.Mutex
}

// NewPeer builds a Peer snapshot from the tracks and role an incoming
// PeerCreated event carries, pre-populating senders/receivers exactly as
// the original snapshot.rs constructor does.
func NewPeer(id string, tracks []signal.Track, role signal.NegotiationRole) *Peer {
	p := &Peer{
		ID:               id,
		Senders:          reactive.NewSequence[*Track](),
		Receivers:        reactive.NewSequence[*Track](),
		RestartICE:       reactive.NewProgressable(false),
		NegotiationRole:  reactive.NewCell(&role),
		NegotiationState: reactive.NewCell(Stable),
		RemoteSDPOffer:   reactive.NewCell[*string](nil),
	}

	for _, t := range tracks {
		switch t.Direction {
		case signal.DirectionSend:
			p.Senders.Push(NewTrack(t.ID, t.Direction, t.IsMuted))
		case signal.DirectionRecv:
			p.Receivers.Push(NewTrack(t.ID, t.Direction, t.IsMuted))
		}
	}

	return p
}

// FindSender returns the sender snapshot with the given id, if any.
func (p *Peer) FindSender(id uint32) *Track {
	return find(p.Senders, id)
}

// FindReceiver returns the receiver snapshot with the given id, if any.
func (p *Peer) FindReceiver(id uint32) *Track {
	return find(p.Receivers, id)
}

func find(seq *reactive.Sequence[*Track], id uint32) *Track {
	for _, t := range seq.Snapshot() {
		if t.ID == id {
			return t
		}
	}
	return nil
}
