// Package negolog supplies the single pion/logging-backed logger factory
// shared by the negotiation core and its webrtcconn collaborator, so a
// caller can redirect every log line this module emits through one sink
// (SPEC_FULL §9, mirroring the teacher's "client: "/"sfu: " prefix style).
package negolog

import (
	"os"

	"github.com/pion/logging"
)

var factory logging.LoggerFactory = logging.NewDefaultLoggerFactory()

// SetFactory overrides the process-wide logger factory. Call it once
// during startup; it is not safe to call concurrently with logging calls.
func SetFactory(f logging.LoggerFactory) {
	if f != nil {
		factory = f
	}
}

// For returns a scoped leveled logger, the same way webrtc.SettingEngine
// obtains one per subsystem.
func For(scope string) logging.LeveledLogger {
	return factory.NewLogger(scope)
}

func init() {
	if os.Getenv("NEGOTIATOR_DEBUG") != "" {
		if f, ok := factory.(*logging.DefaultLoggerFactory); ok {
			f.DefaultLogLevel = logging.LogLevelDebug
		}
	}
}
