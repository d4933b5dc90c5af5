package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for common stream and server error conditions.
var (
	// ErrStreamClosed is returned when an operation is attempted on a closed stream.
	ErrStreamClosed = errors.New("server: stream closed")

	// ErrSendBacklog is returned when a stream's send queue is full.
	ErrSendBacklog = errors.New("server: send backlog full")

	// ErrTooManyStreams is returned when the stream limit is reached.
	ErrTooManyStreams = errors.New("server: too many streams")

	// ErrBadHandshake is returned when the first client frame is not a
	// valid hello.
	ErrBadHandshake = errors.New("server: bad handshake")

	// ErrVersionMismatch is returned when the client speaks an
	// incompatible protocol version.
	ErrVersionMismatch = errors.New("server: protocol version mismatch")
)

// StreamError wraps an error with connection context for debugging.
type StreamError struct {
	Remote string // Remote address of the stream
	Op     string // Operation that failed
	Err    error  // Underlying error
}

// Error returns the error message with connection context.
func (e *StreamError) Error() string {
	if e.Remote == "" {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: stream %s: %s: %v", e.Remote, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// NewStreamError creates a new StreamError.
func NewStreamError(remote, op string, err error) *StreamError {
	return &StreamError{
		Remote: remote,
		Op:     op,
		Err:    err,
	}
}
