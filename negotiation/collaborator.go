// Package negotiation implements the event-driven negotiation orchestrator:
// the per-peer cooperative state machine (T1-T5) plus the room wiring and
// event handler facade that drive it (spec §4).
package negotiation

import (
	"context"

	"github.com/inlivedev/negotiator/signal"
)

// PeerConnection is the external collaborator contract §6 describes. Every
// operation may suspend (block on ctx); failures are terminal for the
// owning peer (spec §7, CollaboratorFailed).
type PeerConnection interface {
	// AddTransceiver appends a transceiver matching the next pending track
	// in the given direction.
	AddTransceiver(ctx context.Context, dir signal.Direction) error
	// SetRemoteOffer applies the given remote SDP description.
	SetRemoteOffer(ctx context.Context, sdp string) error
	// CreateLocalOffer produces either an offer or an answer SDP,
	// depending on the collaborator's own signaling state.
	CreateLocalOffer(ctx context.Context) (string, error)
	// RestartICE begins an ICE restart.
	RestartICE(ctx context.Context) error
	// Close releases any resources held by the collaborator.
	Close() error
}

// MediaTrack is the external collaborator contract for one underlying
// media track (spec §6).
type MediaTrack interface {
	SetEnabled(ctx context.Context, enabled bool) error
}

// PeerConnectionFactory allocates a fresh PeerConnection for a newly
// materialized peer (spec §4.4, Room component).
type PeerConnectionFactory func(ctx context.Context, peerID string) (PeerConnection, error)

// MediaTrackFactory allocates a fresh MediaTrack to back one sender or
// receiver track component (spec §4.3).
type MediaTrackFactory func() MediaTrack
