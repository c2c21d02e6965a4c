package webrtcconn

import (
	"context"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/inlivedev/negotiator/negolog"
	"github.com/inlivedev/negotiator/negotiation"
)

// NewMediaTrackFactory returns a negotiation.MediaTrackFactory producing
// trackGate collaborators, grounded on the teacher's ClientTrack push()
// enabled-gate check in clienttrack.go, generalized from "drop RTP packets
// when disabled" (an SFU forwarding decision) to the single boolean
// negotiation.MediaTrack this module's contract requires.
func NewMediaTrackFactory() negotiation.MediaTrackFactory {
	return func() negotiation.MediaTrack {
		return &trackGate{log: negolog.For("webrtcconn")}
	}
}

// trackGate implements negotiation.MediaTrack. It holds the single
// enabled/disabled bit a track worker (spec §4.3) toggles in response to
// is_muted changes.
type trackGate struct {
	enabled atomic.Bool
	log     logging.LeveledLogger
}

func (t *trackGate) SetEnabled(ctx context.Context, enabled bool) error {
	t.enabled.Store(enabled)
	t.log.Debugf("track enabled=%v", enabled)
	return nil
}

// Enabled reports the track's current gate state, exposed for tests and for
// callers forwarding RTP that need to check it before writing packets.
func (t *trackGate) Enabled() bool {
	return t.enabled.Load()
}
