package negotiation

import (
	"context"
	"sync"

	"github.com/pion/logging"

	"github.com/inlivedev/negotiator/negolog"
	"github.com/inlivedev/negotiator/snapshot"
)

// Room materializes a Peer (with its five tasks) for every peer snapshot
// that appears in the room, via a PeerConnectionFactory — spec §4.4.
type Room struct {
	Snapshot *snapshot.Room

	factory      PeerConnectionFactory
	mediaFactory MediaTrackFactory

	ctx    context.Context
	cancel context.CancelFunc
	log    logging.LeveledLogger

	mu    sync.Mutex
	peers map[string]*Peer
}

// NewRoom wires a fresh snapshot.Room to real collaborators and starts the
// on-peer-created task.
func NewRoom(ctx context.Context, factory PeerConnectionFactory, mediaFactory MediaTrackFactory) *Room {
	rctx, cancel := context.WithCancel(ctx)
	r := &Room{
		Snapshot:     snapshot.NewRoom(),
		factory:      factory,
		mediaFactory: mediaFactory,
		ctx:          rctx,
		cancel:       cancel,
		log:          negolog.For("room"),
		peers:        make(map[string]*Peer),
	}
	go r.runOnPeerCreated()
	return r
}

func (r *Room) runOnPeerCreated() {
	sub := r.Snapshot.Peers.OnPush()
	defer sub.Unsubscribe()

	for {
		select {
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			r.materialize(item.Value)
			item.Done()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Room) materialize(snap *snapshot.Peer) {
	conn, err := r.factory(r.ctx, snap.ID)
	if err != nil {
		r.log.Errorf("%s: peer connection allocation failed: %v", snap.ID, err)
		return
	}

	peer := NewPeer(r.ctx, snap, conn, r.mediaFactory, r.onPeerFailed)

	r.mu.Lock()
	r.peers[snap.ID] = peer
	r.mu.Unlock()

	peer.Spawn()
}

// onPeerFailed drops a peer that hit CollaboratorFailed from the room's
// bookkeeping (spec §7): the snapshot sequence itself is append-only
// (peer removal from Peers is not modelled, matching the explicit
// non-goal on track removal), but Room stops tracking its Peer so no
// further materialization work references it.
func (r *Room) onPeerFailed(p *Peer, err error) {
	r.mu.Lock()
	delete(r.peers, p.Snapshot.ID)
	r.mu.Unlock()
	r.log.Errorf("%s: peer failed and was dropped: %v", p.Snapshot.ID, err)
}

// Peer returns the live Peer for an id, if its PeerConnection has been
// materialized yet.
func (r *Room) Peer(id string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	return p, ok
}

// Stop tears down every peer and stops accepting new ones.
func (r *Room) Stop() {
	r.cancel()

	r.mu.Lock()
	peers := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		peers = append(peers, p)
	}
	r.mu.Unlock()

	for _, p := range peers {
		p.Stop()
	}
}
