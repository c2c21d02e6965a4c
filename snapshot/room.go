package snapshot

import "github.com/inlivedev/negotiator/reactive"

// Room holds the ordered sequence of peer snapshots. It is created once at
// startup and mutated only by the event handler appending peers — peer
// removal is not modelled (spec §3, §4.4, explicit non-goal).
type Room struct {
	Peers *reactive.Sequence[*Peer]
}

// NewRoom returns an empty Room.
func NewRoom() *Room {
	return &Room{Peers: reactive.NewSequence[*Peer]()}
}

// FindPeer returns the peer snapshot with the given id, if any.
func (r *Room) FindPeer(id string) *Peer {
	for _, p := range r.Peers.Snapshot() {
		if p.ID == id {
			return p
		}
	}
	return nil
}
