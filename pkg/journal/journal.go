// Package journal persists encoded transaction payloads by revision so a
// server can replay history to resyncing clients and rebuild its stream
// position after a restart.
//
// A journal is an append-only map from revision to payload. Revisions
// arrive in ascending order from a single writer; Replay walks them back
// in the same order. The payload is opaque to the journal (in practice it
// is an encoded transaction frame payload).
package journal

import (
	"context"
	"errors"
)

// Common journal errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed journal.
	ErrClosed = errors.New("journal: closed")
)

// Journal stores transaction payloads by revision.
type Journal interface {
	// Append persists the payload for revision. Appends arrive in
	// ascending revision order from a single writer.
	Append(ctx context.Context, revision uint64, payload []byte) error

	// Replay calls fn for every stored revision greater than after, in
	// ascending order. Replay stops at the first error from fn and
	// returns it.
	Replay(ctx context.Context, after uint64, fn func(revision uint64, payload []byte) error) error

	// Close releases the journal's resources.
	Close() error
}

// Nop is a Journal that stores nothing. It is the default when a server
// runs without persistence.
type Nop struct{}

// Append discards the payload.
func (Nop) Append(ctx context.Context, revision uint64, payload []byte) error {
	return nil
}

// Replay has nothing to replay.
func (Nop) Replay(ctx context.Context, after uint64, fn func(revision uint64, payload []byte) error) error {
	return nil
}

// Close does nothing.
func (Nop) Close() error {
	return nil
}
