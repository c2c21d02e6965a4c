package negotiation

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled names the Cancelled error kind (spec §7). Nothing in
	// this package returns it: a task whose context is cancelled while
	// blocked on a reactive waiter gets reactive.ErrCancelled and exits.
	ErrCancelled = errors.New("negotiation: cancelled")

	// ErrUnknownTrack names the update-for-unknown-track case (spec §7,
	// InvariantViolated). The event handler does not return it: it logs a
	// warning for such an update and ignores the change.
	ErrUnknownTrack = errors.New("negotiation: update for unknown track id")

	// ErrPeerNotFound is reported when an event references a peer id the
	// room has no snapshot for.
	ErrPeerNotFound = errors.New("negotiation: peer not found")
)

// CollaboratorError wraps a failure returned by the PeerConnection or
// MediaTrack collaborator, naming the operation that failed (spec §7,
// CollaboratorFailed). It is terminal for the owning peer.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("negotiation: %s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func collaboratorErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Op: op, Err: err}
}
