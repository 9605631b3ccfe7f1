package peer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState   = errors.New("invalid link state transition")
	ErrStaleSignal    = errors.New("stale signal")
	ErrBadDescription = errors.New("malformed session description")
	ErrBadCandidate   = errors.New("malformed ICE candidate")
)

// NegotiationError wraps a failure in one negotiation step with the
// operation and remote peer it concerned.
type NegotiationError struct {
	Op     string
	Remote string
	Err    error
}

func (e *NegotiationError) Error() string {
	if e.Remote != "" {
		return fmt.Sprintf("%s (peer %s): %v", e.Op, e.Remote, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

func newError(op, remote string, err error) *NegotiationError {
	return &NegotiationError{Op: op, Remote: remote, Err: err}
}
