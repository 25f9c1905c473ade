package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected       = errors.New("not connected to rendezvous server")
	ErrPeerDisconnected   = errors.New("peer disconnected")
	ErrChannelNotOpen     = errors.New("data channel not open")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrUnexpectedSignal   = errors.New("unexpected signal type")
)

// SessionError wraps a failure with the operation that produced it.
type SessionError struct {
	Op      string
	Err     error
	Details string
}

func (e *SessionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *SessionError {
	return &SessionError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *SessionError {
	return &SessionError{Op: op, Err: err, Details: details}
}
