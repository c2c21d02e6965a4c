package negotiation

import (
	"context"
	"sync"

	"github.com/pion/logging"

	"github.com/inlivedev/negotiator/negolog"
	"github.com/inlivedev/negotiator/reactive"
	"github.com/inlivedev/negotiator/signal"
	"github.com/inlivedev/negotiator/snapshot"
)

// Peer wires a snapshot.Peer to a real PeerConnection collaborator and
// owns the five long-lived tasks (T1-T5, spec §4.2) that drive negotiation
// for it. It is constructed once per peer, by Room, and lives until its
// context is cancelled.
type Peer struct {
	Snapshot *snapshot.Peer

	conn         PeerConnection
	mediaFactory MediaTrackFactory

	ctx    context.Context
	cancel context.CancelFunc
	log    logging.LeveledLogger

	onFailed  func(*Peer, error)
	failOnce  sync.Once
	wg        sync.WaitGroup
}

// NewPeer constructs a Peer ready to Spawn. parentCtx is typically the
// Room's context; cancelling it (or calling Stop) tears down all five
// tasks, the Go analogue of "dropping an observable" (spec §5).
func NewPeer(parentCtx context.Context, snap *snapshot.Peer, conn PeerConnection, mediaFactory MediaTrackFactory, onFailed func(*Peer, error)) *Peer {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Peer{
		Snapshot:     snap,
		conn:         conn,
		mediaFactory: mediaFactory,
		ctx:          ctx,
		cancel:       cancel,
		log:          negolog.For("peer"),
		onFailed:     onFailed,
	}
}

// Spawn launches T1-T5. Call it exactly once.
func (p *Peer) Spawn() {
	p.wg.Add(5)
	go p.runNegotiationDriver()  // T1
	go p.runIceRestartWorker()   // T2
	go p.runRemoteOfferApplier() // T3
	go p.runSenderAddedWorker()  // T4
	go p.runReceiverAddedWorker() // T5
}

// Stop cancels the peer's context, unblocking every task so it exits its
// loop, and closes the underlying PeerConnection.
func (p *Peer) Stop() {
	p.cancel()
	p.wg.Wait()
	_ = p.conn.Close()
}

// fail is CollaboratorFailed handling (spec §7): log once, cancel the
// context so every task exits, and notify the owner (Room) so it can stop
// tracking this Peer (the peer snapshot itself stays in the room).
func (p *Peer) fail(op string, err error) {
	if err == nil {
		return
	}
	cerr := collaboratorErr(op, err)
	p.failOnce.Do(func() {
		p.log.Errorf("%s: %v", p.Snapshot.ID, cerr)
		p.cancel()
		if p.onFailed != nil {
			p.onFailed(p, cerr)
		}
	})
}

// --- T1: negotiation driver -------------------------------------------------

func (p *Peer) runNegotiationDriver() {
	defer p.wg.Done()

	sub := p.Snapshot.NegotiationRole.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case role, ok := <-sub.C():
			if !ok {
				return
			}
			if role == nil {
				continue
			}
			if err := p.driveRound(*role); err != nil {
				if err == reactive.ErrCancelled {
					return
				}
				p.fail("negotiation-round", err)
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Peer) driveRound(role signal.NegotiationRole) error {
	// Step 2: snapshot the ice-restart barrier before branching, so a
	// restart already in flight at this instant is what gets waited on.
	waitForIceRestart := p.Snapshot.RestartICE.Barrier()

	switch role.Kind {
	case signal.RoleOfferer:
		return p.driveOfferer(waitForIceRestart)
	case signal.RoleAnswerer:
		return p.driveAnswerer(role.RemoteOffer, waitForIceRestart)
	default:
		return nil
	}
}

func (p *Peer) driveOfferer(waitForIceRestart func(context.Context) error) error {
	if err := waitAll(p.ctx,
		p.Snapshot.Senders.WhenPushCompleted,
		p.Snapshot.Receivers.WhenPushCompleted,
	); err != nil {
		return err
	}

	if err := waitForIceRestart(p.ctx); err != nil {
		return err
	}

	if _, err := p.conn.CreateLocalOffer(p.ctx); err != nil {
		return collaboratorErr("create-local-offer", err)
	}
	p.Snapshot.NegotiationState.Set(snapshot.HaveLocal)

	if err := p.Snapshot.NegotiationState.WhenEqual(p.ctx, snapshot.Stable); err != nil {
		return err
	}

	p.Snapshot.NegotiationRole.Set(nil)
	return nil
}

func (p *Peer) driveAnswerer(remoteOffer string, waitForIceRestart func(context.Context) error) error {
	if err := p.Snapshot.Receivers.WhenPushCompleted(p.ctx); err != nil {
		return err
	}

	p.Snapshot.RemoteSDPOffer.Set(&remoteOffer)

	if err := p.Snapshot.Senders.WhenPushCompleted(p.ctx); err != nil {
		return err
	}

	if err := waitForIceRestart(p.ctx); err != nil {
		return err
	}

	if _, err := p.conn.CreateLocalOffer(p.ctx); err != nil {
		return collaboratorErr("create-local-offer", err)
	}

	p.Snapshot.NegotiationState.Set(snapshot.Stable)
	p.Snapshot.NegotiationRole.Set(nil)
	return nil
}

// waitAll runs every fn concurrently against ctx and returns the first
// non-nil error once all have returned (spec §4.2 T1 Offerer step (a):
// "await senders.when_push_completed() and receivers.when_push_completed()
// in parallel").
func waitAll(ctx context.Context, fns ...func(context.Context) error) error {
	results := make(chan error, len(fns))
	for _, fn := range fns {
		fn := fn
		go func() { results <- fn(ctx) }()
	}

	var first error
	for range fns {
		if err := <-results; err != nil && first == nil {
			first = err
		}
	}
	return first
}

// --- T2: ICE restart worker --------------------------------------------------

func (p *Peer) runIceRestartWorker() {
	defer p.wg.Done()

	sub := p.Snapshot.RestartICE.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			if item.Value {
				if err := p.conn.RestartICE(p.ctx); err != nil {
					item.Done()
					p.fail("restart-ice", err)
					return
				}
				p.Snapshot.RestartICE.Set(false)
			}
			item.Done()
		case <-p.ctx.Done():
			return
		}
	}
}

// --- T3: remote-offer applier ------------------------------------------------

func (p *Peer) runRemoteOfferApplier() {
	defer p.wg.Done()

	sub := p.Snapshot.RemoteSDPOffer.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case offer, ok := <-sub.C():
			if !ok {
				return
			}
			if offer == nil {
				continue
			}
			if err := p.conn.SetRemoteOffer(p.ctx, *offer); err != nil {
				p.fail("set-remote-offer", err)
				return
			}
			p.Snapshot.NegotiationState.Mutate(snapshot.NextStateOnRemoteOffer)
		case <-p.ctx.Done():
			return
		}
	}
}

// --- T4: sender-added worker --------------------------------------------------

func (p *Peer) runSenderAddedWorker() {
	defer p.wg.Done()

	sub := p.Snapshot.Senders.OnPush()
	defer sub.Unsubscribe()

	for {
		select {
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			if cancelled := p.handleSenderAdded(item); cancelled {
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// handleSenderAdded returns true if the task should exit entirely — per
// spec §4.2 T4 step 1, a cancelled wait for HaveRemote exits the task, not
// just this item.
func (p *Peer) handleSenderAdded(item *reactive.Item[*snapshot.Track]) bool {
	defer item.Done()

	// Taking ApplyMu here blocks until the event handler has finished
	// applying the whole batch this push was part of (see
	// snapshot.Peer.ApplyMu), so the role read below can never observe a
	// push without the negotiation_role change meant to accompany it.
	p.Snapshot.ApplyMu.Lock()
	role := p.Snapshot.NegotiationRole.Get()
	p.Snapshot.ApplyMu.Unlock()

	if role != nil && role.Kind == signal.RoleAnswerer {
		if err := p.Snapshot.NegotiationState.When(p.ctx, func(s snapshot.NegotiationState) bool {
			return s == snapshot.HaveRemote
		}); err != nil {
			return true
		}
	}

	if err := p.conn.AddTransceiver(p.ctx, signal.DirectionSend); err != nil {
		p.fail("add-transceiver", err)
		return true
	}

	p.spawnTrackWorker(item.Value)
	return false
}

// --- T5: receiver-added worker ------------------------------------------------

func (p *Peer) runReceiverAddedWorker() {
	defer p.wg.Done()

	sub := p.Snapshot.Receivers.OnPush()
	defer sub.Unsubscribe()

	for {
		select {
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			p.handleReceiverAdded(item)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Peer) handleReceiverAdded(item *reactive.Item[*snapshot.Track]) {
	defer item.Done()

	if err := p.conn.AddTransceiver(p.ctx, signal.DirectionRecv); err != nil {
		p.fail("add-transceiver", err)
		return
	}

	p.spawnTrackWorker(item.Value)
}

// --- track component (spec §4.3) --------------------------------------------

func (p *Peer) spawnTrackWorker(track *snapshot.Track) {
	media := p.mediaFactory()
	p.wg.Add(1)
	go p.runTrackWorker(track, media)
}

func (p *Peer) runTrackWorker(track *snapshot.Track, media MediaTrack) {
	defer p.wg.Done()

	sub := track.IsMuted.Subscribe()
	defer sub.Unsubscribe()

	for {
		select {
		case item, ok := <-sub.C():
			if !ok {
				return
			}
			if err := media.SetEnabled(p.ctx, !item.Value); err != nil {
				p.log.Warnf("%s: track %d set-enabled: %v", p.Snapshot.ID, track.ID, err)
			}
			item.Done()
		case <-p.ctx.Done():
			return
		}
	}
}
