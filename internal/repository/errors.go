package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when the store session is not open.
	ErrNotReady = errors.New("graph store not ready")

	// ErrInvalidArgument is returned for thresholds or directions a query
	// cannot run with.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("graph store closed")
)

// TransportError wraps a failed remote call. Calls are never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("graph store transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err came from the store transport.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
