package negotiation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inlivedev/negotiator/signal"
	"github.com/inlivedev/negotiator/snapshot"
)

func waitRoundFinished(t *testing.T, snap *snapshot.Peer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := snap.NegotiationRole.When(ctx, func(r *signal.NegotiationRole) bool { return r == nil })
	require.NoError(t, err)
}

func newTestPeer(snap *snapshot.Peer, conn PeerConnection) *Peer {
	return NewPeer(context.Background(), snap, conn, fakeMediaTrackFactory(), func(*Peer, error) {})
}

// bootstrapInitialRound settles the trivial Offerer round that
// snapshot.NewPeer's initial role always starts, so a test's own scenario
// begins from a genuinely idle peer.
func bootstrapInitialRound(t *testing.T, snap *snapshot.Peer) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
	snap.RemoteSDPOffer.Set(strPtr("bootstrap"))
	waitRoundFinished(t, snap)
}

// Scenario 1: initial Offerer round.
func TestScenarioInitialOffererRound(t *testing.T) {
	tracks := []signal.Track{
		{ID: 0, Direction: signal.DirectionSend},
		{ID: 1, Direction: signal.DirectionRecv},
	}
	snap := snapshot.NewPeer("peer-0", tracks, *signal.Offerer())
	conn := newFakePeerConnection()
	p := newTestPeer(snap, conn)
	p.Spawn()
	defer p.Stop()

	time.Sleep(20 * time.Millisecond)
	snap.RemoteSDPOffer.Set(strPtr("aaa"))

	waitRoundFinished(t, snap)

	calls := conn.Calls()
	require.Len(t, calls, 4)
	assert.ElementsMatch(t, []string{"add_transceiver(send)", "add_transceiver(recv)"}, calls[0:2])
	assert.Equal(t, "create_local_offer", calls[2])
	assert.Equal(t, "set_remote_offer(aaa)", calls[3])
}

// Scenario 2: Answerer round with ICE restart plus two mute updates.
func TestScenarioAnswererWithIceRestartAndMutes(t *testing.T) {
	tracks := []signal.Track{
		{ID: 0, Direction: signal.DirectionSend},
		{ID: 1, Direction: signal.DirectionRecv},
	}
	snap := snapshot.NewPeer("peer-0", tracks, *signal.Offerer())
	// Settle the initial offerer round out of the way first.
	conn := newFakePeerConnection()
	p := newTestPeer(snap, conn)
	p.Spawn()
	defer p.Stop()
	bootstrapInitialRound(t, snap)

	snap.RestartICE.Set(true)
	snap.FindSender(0).IsMuted.Set(true)
	snap.FindReceiver(1).IsMuted.Set(true)
	snap.NegotiationRole.Set(signal.Answerer("asdkj"))

	waitRoundFinished(t, snap)

	assert.True(t, trackMuted(t, snap, 0))
	assert.True(t, trackMuted(t, snap, 1))

	calls := conn.Calls()
	restartIdx := indexOf(calls, "restart_ice")
	remoteIdx := indexOf(calls, "set_remote_offer(asdkj)")
	offerIdx := lastIndexOf(calls, "create_local_offer")
	require.GreaterOrEqual(t, restartIdx, 0)
	require.GreaterOrEqual(t, remoteIdx, 0)
	require.GreaterOrEqual(t, offerIdx, 0)
	assert.Less(t, restartIdx, offerIdx)
	assert.Less(t, remoteIdx, offerIdx)
}

// Scenario 3: pure ICE-restart Answerer round, no track mutations.
func TestScenarioPureIceRestartAnswerer(t *testing.T) {
	snap := snapshot.NewPeer("peer-0", nil, *signal.Offerer())
	conn := newFakePeerConnection()
	p := newTestPeer(snap, conn)
	p.Spawn()
	defer p.Stop()
	bootstrapInitialRound(t, snap)

	snap.RestartICE.Set(true)
	snap.NegotiationRole.Set(signal.Answerer("asdkj"))

	waitRoundFinished(t, snap)

	calls := conn.Calls()
	require.Contains(t, calls, "restart_ice")
	require.Contains(t, calls, "set_remote_offer(asdkj)")
	require.Contains(t, calls, "create_local_offer")

	restartIdx := indexOf(calls, "restart_ice")
	offerIdx := lastIndexOf(calls, "create_local_offer")
	assert.Less(t, restartIdx, offerIdx, "restart_ice must complete before create_local_offer")
}

// Scenario 4: Answerer adding tracks — the sender add_transceiver is
// blocked on HaveRemote, so it must not run before set_remote_offer.
func TestScenarioAnswererAddingTracks(t *testing.T) {
	snap := snapshot.NewPeer("peer-0", nil, *signal.Offerer())
	conn := newFakePeerConnection()
	p := newTestPeer(snap, conn)
	p.Spawn()
	defer p.Stop()
	bootstrapInitialRound(t, snap)

	// Mimic the event handler's atomic batch: every change, then the role
	// change, under the same lock T4 takes before reading the role.
	snap.ApplyMu.Lock()
	snap.Receivers.Push(snapshot.NewTrack(0, signal.DirectionRecv, false))
	snap.Senders.Push(snapshot.NewTrack(1, signal.DirectionSend, false))
	snap.NegotiationRole.Set(signal.Answerer("aasd"))
	snap.ApplyMu.Unlock()

	waitRoundFinished(t, snap)

	calls := conn.Calls()
	recvIdx := lastIndexOf(calls, "add_transceiver(recv)")
	remoteIdx := indexOf(calls, "set_remote_offer(aasd)")
	sendIdx := lastIndexOf(calls, "add_transceiver(send)")

	require.GreaterOrEqual(t, recvIdx, 0)
	require.GreaterOrEqual(t, remoteIdx, 0)
	require.GreaterOrEqual(t, sendIdx, 0)

	assert.Less(t, recvIdx, remoteIdx, "receiver transceiver is not gated on HaveRemote")
	assert.Less(t, remoteIdx, sendIdx, "sender transceiver must wait for HaveRemote")
}

// Scenario 5: Offerer adding tracks, then a remote answer completes the
// round via negotiation_state HaveLocal -> Stable.
func TestScenarioOffererAddingTracksThenAnswer(t *testing.T) {
	snap := snapshot.NewPeer("peer-0", nil, *signal.Offerer())
	conn := newFakePeerConnection()
	p := newTestPeer(snap, conn)
	p.Spawn()
	defer p.Stop()

	// Let the trivial initial round (no tracks) settle before starting the
	// round this scenario actually exercises.
	bootstrapInitialRound(t, snap)

	snap.Receivers.Push(snapshot.NewTrack(0, signal.DirectionRecv, false))
	snap.Senders.Push(snapshot.NewTrack(1, signal.DirectionSend, false))
	snap.NegotiationRole.Set(signal.Offerer())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, snapshot.HaveLocal, snap.NegotiationState.Get())

	snap.RemoteSDPOffer.Set(strPtr("aaa"))

	waitRoundFinished(t, snap)
	assert.Equal(t, snapshot.Stable, snap.NegotiationState.Get())
}

// Scenario 6: ICE restart concurrent with an Offerer round must still
// order create_local_offer after restart_ice completes, even though
// push-completed resolves earlier.
func TestScenarioIceRestartConcurrentWithOffer(t *testing.T) {
	snap := snapshot.NewPeer("peer-0", nil, *signal.Offerer())
	conn := newFakePeerConnection()
	p := newTestPeer(snap, conn)
	p.Spawn()
	defer p.Stop()
	bootstrapInitialRound(t, snap)

	snap.RestartICE.Set(true)
	snap.Senders.Push(snapshot.NewTrack(2, signal.DirectionSend, false))
	snap.NegotiationRole.Set(signal.Offerer())

	waitRoundFinished(t, snap)

	calls := conn.Calls()
	restartIdx := lastIndexOf(calls, "restart_ice")
	offerIdx := lastIndexOf(calls, "create_local_offer")
	require.GreaterOrEqual(t, restartIdx, 0)
	require.GreaterOrEqual(t, offerIdx, 0)
	assert.Less(t, restartIdx, offerIdx)
}

func indexOf(ss []string, v string) int {
	for i, s := range ss {
		if s == v {
			return i
		}
	}
	return -1
}

func lastIndexOf(ss []string, v string) int {
	for i := len(ss) - 1; i >= 0; i-- {
		if ss[i] == v {
			return i
		}
	}
	return -1
}

func trackMuted(t *testing.T, snap *snapshot.Peer, id uint32) bool {
	t.Helper()
	tr := snap.FindSender(id)
	if tr == nil {
		tr = snap.FindReceiver(id)
	}
	require.NotNil(t, tr)
	return tr.IsMuted.Get()
}

func strPtr(s string) *string { return &s }
