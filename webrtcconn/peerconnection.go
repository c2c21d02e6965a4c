package webrtcconn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/intervalpli"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/inlivedev/negotiator/negolog"
	"github.com/inlivedev/negotiator/negotiation"
	"github.com/inlivedev/negotiator/signal"
)

// NewPeerConnectionFactory builds a negotiation.PeerConnectionFactory that
// allocates one real *webrtc.PeerConnection per peer, wired with the
// teacher's codec/interceptor/SettingEngine sequence (sfu.go
// createClient), generalized to this module's single-peer scope.
func NewPeerConnectionFactory(cfg Config) negotiation.PeerConnectionFactory {
	return func(ctx context.Context, peerID string) (negotiation.PeerConnection, error) {
		pc, err := newAPI().NewPeerConnection(cfg.webrtcConfiguration())
		if err != nil {
			return nil, err
		}

		conn := &peerConnection{
			pc:  pc,
			log: negolog.For("webrtcconn"),
			id:  peerID,
		}

		pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
			conn.log.Debugf("%s: ice connection state changed to %s", peerID, state)
		})

		return conn, nil
	}
}

func newAPI() *webrtc.API {
	m := &webrtc.MediaEngine{}
	if err := registerCodecs(m); err != nil {
		panic(err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		panic(err)
	}

	// A PLI every few seconds causes the remote sender to emit a keyframe,
	// the same resilience trade-off the teacher documents in sfu.go
	// createClient.
	pliFactory, err := intervalpli.NewReceiverInterceptor()
	if err != nil {
		panic(err)
	}
	i.Add(pliFactory)

	se := webrtc.SettingEngine{
		LoggerFactory: defaultLoggerFactoryAdapter{},
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithSettingEngine(se),
		webrtc.WithInterceptorRegistry(i),
	)
}

func registerCodecs(m *webrtc.MediaEngine) error {
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000},
		PayloadType:        96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return err
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return err
	}
	return nil
}

// peerConnection implements negotiation.PeerConnection over a real
// *webrtc.PeerConnection.
type peerConnection struct {
	id  string
	pc  *webrtc.PeerConnection
	log logging.LeveledLogger

	mu                   sync.Mutex
	iceRestartRequested  atomic.Bool
}

func (c *peerConnection) AddTransceiver(ctx context.Context, dir signal.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	init := webrtc.RTPTransceiverInit{Direction: transceiverDirection(dir)}
	transceiver, err := c.pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, init)
	if err != nil {
		return err
	}

	if dir == signal.DirectionRecv {
		c.requestKeyFrame(transceiver)
	}
	return nil
}

func transceiverDirection(dir signal.Direction) webrtc.RTPTransceiverDirection {
	if dir == signal.DirectionSend {
		return webrtc.RTPTransceiverDirectionSendonly
	}
	return webrtc.RTPTransceiverDirectionRecvonly
}

// requestKeyFrame asks the soon-to-arrive sender for an immediate keyframe,
// the same PictureLossIndication the teacher's Client.requestKeyFrame
// sends on every receiver's SSRC.
func (c *peerConnection) requestKeyFrame(t *webrtc.RTPTransceiver) {
	receiver := t.Receiver()
	if receiver == nil || receiver.Track() == nil {
		return
	}
	if err := c.pc.WriteRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{MediaSSRC: uint32(receiver.Track().SSRC())},
	}); err != nil {
		c.log.Warnf("%s: request keyframe: %v", c.id, err)
	}
}

func (c *peerConnection) SetRemoteOffer(ctx context.Context, sdp string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
}

// CreateLocalOffer produces an offer or an answer depending on the
// PeerConnection's own signaling state: HaveRemoteOffer means a remote
// offer is pending and we must answer it, anything else means we are
// initiating (spec §6: "produce either offer or answer SDP depending on
// current underlying state").
func (c *peerConnection) CreateLocalOffer(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	restart := c.iceRestartRequested.Swap(false)

	var desc webrtc.SessionDescription
	var err error
	if c.pc.SignalingState() == webrtc.SignalingStateHaveRemoteOffer {
		desc, err = c.pc.CreateAnswer(nil)
	} else {
		desc, err = c.pc.CreateOffer(&webrtc.OfferOptions{ICERestart: restart})
	}
	if err != nil {
		return "", err
	}

	if err := c.pc.SetLocalDescription(desc); err != nil {
		return "", err
	}

	local := c.pc.LocalDescription()
	if local == nil {
		return desc.SDP, nil
	}
	return local.SDP, nil
}

// RestartICE marks a restart as requested; the actual ICE-restart offer
// option is consumed by the next CreateLocalOffer call, matching how
// pion/webrtc itself only expresses an ICE restart as an offer option —
// there is no standalone "restart now" RPC on *webrtc.PeerConnection.
func (c *peerConnection) RestartICE(ctx context.Context) error {
	c.iceRestartRequested.Store(true)
	c.log.Debugf("%s: ice restart requested", c.id)
	return nil
}

func (c *peerConnection) Close() error {
	return c.pc.Close()
}

type defaultLoggerFactoryAdapter struct{}

func (defaultLoggerFactoryAdapter) NewLogger(scope string) logging.LeveledLogger {
	return negolog.For(scope)
}
