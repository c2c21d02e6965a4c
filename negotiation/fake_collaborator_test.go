package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/inlivedev/negotiator/signal"
)

// fakePeerConnection records every collaborator call in order, with enough
// state to answer CreateLocalOffer/SignalingState-dependent questions the
// real pion wrapper would decide based on its own underlying state.
type fakePeerConnection struct {
	mu    sync.Mutex
	calls []string

	haveRemoteOffer bool
	offerCount      int
}

func newFakePeerConnection() *fakePeerConnection {
	return &fakePeerConnection{}
}

func (f *fakePeerConnection) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakePeerConnection) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakePeerConnection) AddTransceiver(ctx context.Context, dir signal.Direction) error {
	f.record(fmt.Sprintf("add_transceiver(%s)", dir))
	return nil
}

func (f *fakePeerConnection) SetRemoteOffer(ctx context.Context, sdp string) error {
	f.record(fmt.Sprintf("set_remote_offer(%s)", sdp))
	f.mu.Lock()
	f.haveRemoteOffer = true
	f.mu.Unlock()
	return nil
}

func (f *fakePeerConnection) CreateLocalOffer(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.offerCount++
	n := f.offerCount
	f.haveRemoteOffer = false
	f.mu.Unlock()
	f.record("create_local_offer")
	return fmt.Sprintf("offer-%d", n), nil
}

func (f *fakePeerConnection) RestartICE(ctx context.Context) error {
	f.record("restart_ice")
	return nil
}

func (f *fakePeerConnection) Close() error {
	f.record("close")
	return nil
}

// fakeMediaTrack records every SetEnabled call.
type fakeMediaTrack struct {
	mu    sync.Mutex
	calls []bool
}

func (m *fakeMediaTrack) SetEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, enabled)
	return nil
}

func (m *fakeMediaTrack) Calls() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.calls))
	copy(out, m.calls)
	return out
}

func fakeMediaTrackFactory() MediaTrackFactory {
	return func() MediaTrack { return &fakeMediaTrack{} }
}
