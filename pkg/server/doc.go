// Package server hosts a shadow tree behind a WebSocket mount stream.
//
// The server owns a shadow.Tree and a mount.Coordinator. Each Publish
// call pulls the next transaction from the coordinator, encodes it once,
// records it in the transaction history and the journal, and fans the
// encoded frame out to every connected stream. Clients therefore all
// observe the same revision sequence, byte for byte.
//
// # Architecture
//
//   - Server: HTTP endpoints, publish pipeline, stream registry
//   - History: ring buffer of recent transactions for reconnect replay
//   - stream: one WebSocket connection with its own send queue and loops
//   - journal.Journal: optional durable record of every transaction
//
// # Connection Lifecycle
//
// A client connects to /mount and sends a hello frame carrying its
// protocol version and the last revision it holds. The server replies
// with its own hello, then brings the client current: either by
// replaying the missed transactions from history, or, when the gap has
// left the history window, with a single snapshot transaction flagged
// FlagSnapshot that rebuilds the tree from nothing. From then on the
// client receives one transaction frame per published revision.
//
// A client that detects a gap mid-stream sends a resync request; the
// server answers with a resync reply containing either the missed
// transactions or a fresh snapshot.
//
// # Endpoints
//
//   - GET /mount    WebSocket upgrade for the mount stream
//   - GET /healthz  liveness with current revision and stream count
//   - GET /metrics  Prometheus metrics
//
// # Thread Safety
//
// Publishing and stream attachment serialize on one mutex, so a client
// is brought current and registered atomically with respect to the
// revision stream: it can never miss a transaction between its snapshot
// and its first live frame. Each stream's frames are written by a single
// goroutine fed from a buffered channel; a stream that cannot keep up is
// dropped rather than allowed to stall the publisher.
package server
