package negotiation

import (
	"context"

	"github.com/pion/logging"

	"github.com/inlivedev/negotiator/negolog"
	"github.com/inlivedev/negotiator/signal"
	"github.com/inlivedev/negotiator/snapshot"
)

// EventHandler translates decoded protocol events into snapshot mutations,
// atomically within one synchronous call (spec §4.5). It is the only
// writer of the snapshot tree; every per-peer task only reads it and
// writes back its own status fields.
type EventHandler struct {
	room *Room
	log  logging.LeveledLogger
}

// NewEventHandler returns a facade writing into room's snapshot.
func NewEventHandler(room *Room) *EventHandler {
	return &EventHandler{room: room, log: negolog.For("event-handler")}
}

// Handle dispatches a decoded Event to the matching snapshot mutation.
func (h *EventHandler) Handle(ev signal.Event) error {
	switch {
	case ev.PeerCreated != nil:
		h.peerCreated(*ev.PeerCreated)
		return nil
	case ev.TrackUpdate != nil:
		return h.trackUpdate(*ev.TrackUpdate)
	case ev.SdpAnswerMade != nil:
		return h.sdpAnswerMade(*ev.SdpAnswerMade)
	default:
		return nil
	}
}

func (h *EventHandler) peerCreated(ev signal.PeerCreated) {
	peerID := ev.PeerID
	if peerID == "" {
		// The signaling layer doesn't always assign an id up front; mint one
		// so every peer snapshot still has a stable identity.
		peerID = NewPeerID()
	}
	peer := snapshot.NewPeer(peerID, ev.Tracks, ev.NegotiationRole)
	h.room.Snapshot.Peers.Push(peer)
}

func (h *EventHandler) trackUpdate(ev signal.TrackUpdate) error {
	peer := h.room.Snapshot.FindPeer(ev.PeerID)
	if peer == nil {
		h.log.Warnf("track update for unknown peer %s", ev.PeerID)
		return ErrPeerNotFound
	}

	// Holding ApplyMu across the whole batch makes it atomic from the
	// point of view of any reader (T4) that takes the same lock before
	// reading negotiation_role, the Go stand-in for the single-threaded
	// run-to-completion guarantee the original relies on.
	peer.ApplyMu.Lock()
	defer peer.ApplyMu.Unlock()

	for _, change := range ev.Changes {
		h.applyChange(peer, change)
	}

	// The "negotiation_role set last" discipline (spec §4.5): subscribers
	// to the sequences and to restart_ice must already see the new
	// items/flags by the time T1 wakes on this write.
	if ev.NegotiationRole != nil {
		peer.NegotiationRole.Set(ev.NegotiationRole)
	}
	return nil
}

func (h *EventHandler) applyChange(peer *snapshot.Peer, change signal.TrackChange) {
	switch change.Kind {
	case signal.ChangeIceRestart:
		peer.RestartICE.Set(true)

	case signal.ChangeAdded:
		t := change.Added
		switch t.Direction {
		case signal.DirectionSend:
			peer.Senders.Push(snapshot.NewTrack(t.ID, t.Direction, t.IsMuted))
		case signal.DirectionRecv:
			peer.Receivers.Push(snapshot.NewTrack(t.ID, t.Direction, t.IsMuted))
		}

	case signal.ChangeUpdate:
		h.applyUpdate(peer, change.Patch)
	}
}

func (h *EventHandler) applyUpdate(peer *snapshot.Peer, patch signal.TrackPatch) {
	track := peer.FindSender(patch.ID)
	if track == nil {
		track = peer.FindReceiver(patch.ID)
	}
	if track == nil {
		h.log.Warnf("update for unknown track id %d", patch.ID)
		return
	}
	if patch.IsMuted != nil {
		track.IsMuted.Set(*patch.IsMuted)
	}
}

func (h *EventHandler) sdpAnswerMade(ev signal.SdpAnswerMade) error {
	peer := h.room.Snapshot.FindPeer(ev.PeerID)
	if peer == nil {
		h.log.Warnf("sdp answer for unknown peer %s", ev.PeerID)
		return ErrPeerNotFound
	}
	sdp := ev.SDP
	peer.RemoteSDPOffer.Set(&sdp)
	return nil
}

// WaitForNegotiationFinish blocks until the peer's negotiation role goes
// back to none — the completion signal of one negotiation round (spec
// §2's "completion of the negotiation round is observable by clearing the
// peer's negotiation_role back to none"). It supplements the distilled
// spec with the helper the original main.rs harness hand-rolled inline.
func (h *EventHandler) WaitForNegotiationFinish(ctx context.Context, peerID string) error {
	peer := h.room.Snapshot.FindPeer(peerID)
	if peer == nil {
		return ErrPeerNotFound
	}
	return peer.NegotiationRole.When(ctx, func(r *signal.NegotiationRole) bool {
		return r == nil
	})
}
