package reactive

import "errors"

// ErrCancelled is returned by any waiter (When, WhenAllProcessed,
// WhenPushCompleted) when its context is done before the condition holds —
// the Go analogue of spec §7's "a waiter's observable was dropped".
var ErrCancelled = errors.New("reactive: cancelled")
