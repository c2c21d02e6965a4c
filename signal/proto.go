// Package signal defines the wire-protocol-facing event types the
// negotiation core consumes. Decoding the actual wire format is out of
// scope (spec §1) — these are the already-decoded shapes the event
// handler facade translates into snapshot mutations.
package signal

import "github.com/google/uuid"

// Direction is the media direction of a Track.
type Direction int

const (
	DirectionSend Direction = iota
	DirectionRecv
)

func (d Direction) String() string {
	if d == DirectionSend {
		return "send"
	}
	return "recv"
}

// RoleKind distinguishes the two SDP negotiation roles.
type RoleKind int

const (
	RoleOfferer RoleKind = iota
	RoleAnswerer
)

// NegotiationRole is either Offerer or Answerer(RemoteOffer). A nil
// *NegotiationRole on snapshot.Peer.NegotiationRole means "no round in
// flight" (spec §3).
type NegotiationRole struct {
	Kind        RoleKind
	RemoteOffer string // only meaningful when Kind == RoleAnswerer
}

// Offerer constructs the Offerer role.
func Offerer() *NegotiationRole {
	return &NegotiationRole{Kind: RoleOfferer}
}

// Answerer constructs the Answerer role carrying the remote offer SDP.
func Answerer(remoteOffer string) *NegotiationRole {
	return &NegotiationRole{Kind: RoleAnswerer, RemoteOffer: remoteOffer}
}

// Track is a track as declared by the server: its stable id, direction and
// initial mute state.
type Track struct {
	ID       uint32
	Direction Direction
	IsMuted  bool
}

// TrackPatch updates an existing track's mute state.
type TrackPatch struct {
	ID      uint32
	IsMuted *bool
}

// ChangeKind discriminates a TrackChange.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeUpdate
	ChangeIceRestart
)

// TrackChange is one entry of a TrackUpdate event's change list.
type TrackChange struct {
	Kind  ChangeKind
	Added Track
	Patch TrackPatch
}

func AddedChange(t Track) TrackChange {
	return TrackChange{Kind: ChangeAdded, Added: t}
}

func UpdateChange(p TrackPatch) TrackChange {
	return TrackChange{Kind: ChangeUpdate, Patch: p}
}

func IceRestartChange() TrackChange {
	return TrackChange{Kind: ChangeIceRestart}
}

// Event is the sum type of everything the event source can produce.
type Event struct {
	ID uuid.UUID // correlation id, for log tracing only

	PeerCreated  *PeerCreated
	TrackUpdate  *TrackUpdate
	SdpAnswerMade *SdpAnswerMade
}

// PeerCreated announces a brand new peer with its initial track set and
// negotiation role.
type PeerCreated struct {
	PeerID          string
	Tracks          []Track
	NegotiationRole NegotiationRole
}

// TrackUpdate applies a batch of changes to an existing peer and,
// optionally, kicks off a negotiation round.
type TrackUpdate struct {
	PeerID          string
	Changes         []TrackChange
	NegotiationRole *NegotiationRole // nil means "do not start a round"
}

// SdpAnswerMade feeds a remote SDP answer into a peer in the middle of an
// Offerer round (it does not itself start a round).
type SdpAnswerMade struct {
	PeerID string
	SDP    string
}
