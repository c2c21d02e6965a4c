// Package webrtcconn is the concrete, pion/webrtc-backed implementation of
// the negotiation.PeerConnection and negotiation.MediaTrack collaborator
// contracts (spec §6). It reuses the teacher's MediaEngine/interceptor/
// SettingEngine wiring sequence, generalized from a multi-party SFU client
// to the single-peer negotiation core this module implements.
package webrtcconn

import (
	"github.com/pion/webrtc/v4"
)

// ICEServer mirrors the teacher's TurnServer shape, generalized to any
// ICE server entry instead of one hard-coded TURN host.
type ICEServer struct {
	URLs       []string
	Username   string
	Credential string
}

// Config tunes the PeerConnections this package constructs, the same role
// the teacher's ClientOptions/DefaultClientOptions() play.
type Config struct {
	ICEServers []ICEServer
}

// DefaultConfig returns a Config with no ICE servers configured — callers
// running behind a real TURN/STUN deployment should override ICEServers.
func DefaultConfig() Config {
	return Config{}
}

func (c Config) webrtcConfiguration() webrtc.Configuration {
	servers := make([]webrtc.ICEServer, 0, len(c.ICEServers))
	for _, s := range c.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	return webrtc.Configuration{ICEServers: servers}
}
