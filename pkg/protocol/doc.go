// Package protocol implements the binary wire format for mount streams.
//
// A mount stream carries the output of the differ from a server-side shadow
// tree to a remote mount stage: an initial snapshot transaction, then one
// transaction frame per committed revision. The client applies each
// transaction's mutations in order and acknowledges nothing; revisions are
// the only progress marker, and a client that falls behind (or reconnects)
// asks for a resync.
//
// # Frame Layout
//
// Every message travels in a frame with a fixed 6-byte header:
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (4 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//	│                                                             │
//	│  Payload (variable length)                                  │
//	│                                                             │
//	└─────────────────────────────────────────────────────────────┘
//
// The length field is four bytes rather than two because a snapshot of a
// large tree routinely exceeds 64KB. Payloads are capped at MaxPayloadSize.
//
// Frame types:
//
//	FrameHello         0x00  ClientHello / ServerHello during stream setup
//	FrameTransaction   0x01  one mutation batch, server to client
//	FrameResyncRequest 0x02  client asks for revisions it missed
//	FrameResyncReply   0x03  server replays or snapshots
//	FrameError         0x04  error report, either direction
//
// # Encoding Strategy
//
// Within payloads, integers that are usually small (tags, indexes, counts,
// revisions) use varints; signed values use ZigZag. Fixed-width fields
// (error codes, IEEE floats) are big-endian. Strings and byte blobs are
// length-prefixed.
//
// # Views on the Wire
//
// A view travels as tag, component name, traits, props, and layout frame.
// Props are written in sorted key order so that equal views encode to equal
// bytes. Prop values are limited to scalars (nil, bool, integer, float,
// string); integers widen to int64 in transit. Event emitters are process
// identities and never cross the wire; a decoded view has no emitter.
//
// # Mutations on the Wire
//
// Parents are addressed by bare tag. Create and Insert carry the full new
// child view; Update carries the new state only; Delete and Remove carry
// just enough to address the doomed view. The mount stage on the far side
// needs nothing more, and omitting redundant snapshots keeps reorder-heavy
// transactions small.
//
// # Resync
//
// A client that detects a gap (or reconnects with a stale revision) sends
// FrameResyncRequest with the last revision it applied. The server answers
// with FrameResyncReply: either the journaled transactions covering the gap
// or, when the gap has aged out of history, a single snapshot transaction
// that rebuilds the tree from empty.
//
// # Decoding Limits
//
// All decode paths are bounds-checked and never trust a length prefix
// beyond the remaining buffer. Allocations are capped (see
// DefaultMaxAllocation) and collection counts are validated before any
// allocation happens, so a malicious peer cannot force large allocations
// with a short frame.
package protocol
