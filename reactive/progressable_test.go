package reactive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressableSubscribeInitialDeliveryIsPreDone(t *testing.T) {
	p := NewProgressable(false)
	sub := p.Subscribe()
	defer sub.Unsubscribe()

	item := <-sub.C()
	assert.Equal(t, false, item.Value)
	item.Done() // must not panic even though already pre-armed

	require.NoError(t, p.WhenAllProcessed(context.Background()))
}

func TestProgressableSetNeverCoalesces(t *testing.T) {
	p := NewProgressable(0)
	sub := p.Subscribe()
	defer sub.Unsubscribe()
	<-sub.C() // initial

	p.Set(1)
	p.Set(1) // same value: must still mint a second token

	item1 := <-sub.C()
	assert.Equal(t, 1, item1.Value)
	item1.Done()

	item2 := <-sub.C()
	assert.Equal(t, 1, item2.Value)
	item2.Done()
}

func TestProgressableWhenAllProcessedBlocksUntilDone(t *testing.T) {
	p := NewProgressable(false)
	sub := p.Subscribe()
	defer sub.Unsubscribe()
	<-sub.C()

	p.Set(true)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.WhenAllProcessed(ctx), ErrCancelled)

	item := <-sub.C()
	item.Done()

	require.NoError(t, p.WhenAllProcessed(context.Background()))
}

func TestProgressableBarrierCapturesStateAtSnapshotTime(t *testing.T) {
	p := NewProgressable(false)
	sub := p.Subscribe()
	defer sub.Unsubscribe()
	<-sub.C()

	p.Set(true)
	item := <-sub.C()

	// Snapshot the barrier while the mutation from Set(true) is still
	// outstanding.
	wait := p.Barrier()

	// The captured barrier must stay blocked until the snapshotted
	// mutation is acked, and resolve once it is.
	doneWaiting := make(chan error, 1)
	go func() { doneWaiting <- wait(context.Background()) }()

	select {
	case <-doneWaiting:
		t.Fatal("barrier resolved before the snapshotted mutation was acked")
	case <-time.After(50 * time.Millisecond):
	}

	item.Done()

	select {
	case err := <-doneWaiting:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("barrier never resolved after ack")
	}
}

func TestProgressableBarrierWithNoPendingMutationsResolvesImmediately(t *testing.T) {
	p := NewProgressable(false)
	require.NoError(t, p.Barrier()(context.Background()))
}
