package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stratum-ui/stratum/pkg/journal"
	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/protocol"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Server publishes a shadow tree's revisions over WebSocket mount
// streams.
type Server struct {
	config      *Config
	tree        *shadow.Tree
	coordinator *mount.Coordinator
	history     *History
	journal     journal.Journal
	metrics     *metrics
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	router      http.Handler
	httpServer  *http.Server

	// publishMu serializes publishing with stream attachment, so a
	// client's bootstrap and its live frames cannot interleave wrongly.
	// The snapshot cache lives under it.
	publishMu sync.Mutex
	snapTx    *mount.Transaction
	snapFrame []byte
	snapRev   uint64

	mu      sync.RWMutex
	streams map[*stream]struct{}
}

// New creates a server publishing the given tree. Panics if tree is nil;
// a nil config gets DefaultConfig.
func New(tree *shadow.Tree, config *Config) *Server {
	if tree == nil {
		panic("server: nil tree")
	}
	if config == nil {
		config = DefaultConfig()
	} else {
		// Fill in defaults for any unset fields
		config = config.Clone()
		defaults := DefaultConfig()
		if config.Address == "" {
			config.Address = defaults.Address
		}
		if config.ReadBufferSize == 0 {
			config.ReadBufferSize = defaults.ReadBufferSize
		}
		if config.WriteBufferSize == 0 {
			config.WriteBufferSize = defaults.WriteBufferSize
		}
		if config.CheckOrigin == nil {
			config.CheckOrigin = defaults.CheckOrigin
		}
		if config.HandshakeTimeout == 0 {
			config.HandshakeTimeout = defaults.HandshakeTimeout
		}
		if config.WriteTimeout == 0 {
			config.WriteTimeout = defaults.WriteTimeout
		}
		if config.ReadTimeout == 0 {
			config.ReadTimeout = defaults.ReadTimeout
		}
		if config.PingInterval == 0 {
			config.PingInterval = defaults.PingInterval
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
		if config.ReadHeaderTimeout == 0 {
			config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
		}
		if config.IdleTimeout == 0 {
			config.IdleTimeout = defaults.IdleTimeout
		}
		if config.MaxMessageSize == 0 {
			config.MaxMessageSize = defaults.MaxMessageSize
		}
		if config.HistoryLimit == 0 {
			config.HistoryLimit = defaults.HistoryLimit
		}
		if config.SendBuffer == 0 {
			config.SendBuffer = defaults.SendBuffer
		}
	}
	if config.Journal == nil {
		config.Journal = journal.Nop{}
	}

	base := config.Logger
	if base == nil {
		base = slog.Default()
	}

	s := &Server{
		config: config,
		tree:   tree,
		coordinator: mount.NewCoordinator(tree,
			mount.WithReparenting(config.Reparenting),
			mount.WithLogger(base.With("component", "mount"))),
		history: NewHistory(config.HistoryLimit),
		journal: config.Journal,
		metrics: newMetrics(config.Registry),
		logger:  base.With("component", "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		streams: make(map[*stream]struct{}),
	}
	s.router = s.routes()

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metricsHandler())
	r.Get("/mount", s.handleMount)
	return r
}

func (s *Server) metricsHandler() http.Handler {
	if s.config.Registry != nil {
		return promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Handler returns the server's HTTP handler for mounting in external
// routers or test servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tree returns the published tree.
func (s *Server) Tree() *shadow.Tree {
	return s.tree
}

// History returns the transaction history.
func (s *Server) History() *History {
	return s.history
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Revision returns the last published revision.
func (s *Server) Revision() uint64 {
	return s.coordinator.BaseRevision()
}

// StreamCount returns the number of connected streams.
func (s *Server) StreamCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}

// Publish pulls the next transaction from the tree, records it, and
// fans it out to every stream. Returns (nil, nil) when the tree has not
// moved since the last publish. Journal failures are logged and counted
// but do not fail the publish; the stream must not stall on storage.
func (s *Server) Publish(ctx context.Context) (*mount.Transaction, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	start := time.Now()
	tx, err := s.coordinator.PullTransaction(ctx)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, nil
	}

	payload, err := protocol.EncodeTransaction(tx)
	if err != nil {
		// The coordinator has already advanced; clients will detect the
		// gap and resync with a snapshot.
		s.logger.Error("transaction encode failed",
			"revision", tx.Revision, "error", err)
		return nil, err
	}
	frame := protocol.NewFrame(protocol.FrameTransaction, payload).Encode()

	s.history.Add(tx, frame)
	if err := s.journal.Append(ctx, tx.Revision, payload); err != nil {
		s.metrics.journalFailures.Inc()
		s.logger.Error("journal append failed", "revision", tx.Revision, "error", err)
	}

	s.broadcast(frame)

	s.metrics.transactionsTotal.Inc()
	s.metrics.publishDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug("published",
		"revision", tx.Revision,
		"mutations", len(tx.Mutations),
		"bytes", len(frame))
	return tx, nil
}

// broadcast queues a frame on every stream. Streams that cannot keep up
// are dropped; streams mid-teardown are skipped.
func (s *Server) broadcast(frame []byte) {
	s.mu.RLock()
	targets := make([]*stream, 0, len(s.streams))
	for st := range s.streams {
		targets = append(targets, st)
	}
	s.mu.RUnlock()

	for _, st := range targets {
		switch err := st.enqueue(frame); err {
		case nil, ErrStreamClosed:
		case ErrSendBacklog:
			s.logger.Warn("dropping slow stream", "remote", st.remote)
			s.metrics.streamDrops.Inc()
			st.close()
		default:
			st.close()
		}
	}
}

// snapshotLocked returns a transaction that builds the current base
// revision from nothing, plus its pre-encoded snapshot frame. Cached per
// revision. Callers hold publishMu.
func (s *Server) snapshotLocked() (*mount.Transaction, []byte, error) {
	base, revision := s.coordinator.Base()
	if s.snapTx != nil && s.snapRev == revision {
		return s.snapTx, s.snapFrame, nil
	}

	bare := base.Clone(shadow.WithChildren())
	mutations, err := mount.CalculateMutations(bare, base, false)
	if err != nil {
		return nil, nil, err
	}
	tx := &mount.Transaction{
		BaseRevision: 0,
		Revision:     revision,
		Mutations:    mutations,
	}
	payload, err := protocol.EncodeTransaction(tx)
	if err != nil {
		return nil, nil, err
	}
	frame := protocol.NewFrameWithFlags(protocol.FrameTransaction, protocol.FlagSnapshot, payload)

	s.snapTx = tx
	s.snapFrame = frame.Encode()
	s.snapRev = revision
	return s.snapTx, s.snapFrame, nil
}

// handleMount upgrades the connection, runs the hello exchange, brings
// the client current, and starts its stream loops.
func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(s.config.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		s.logger.Error("handshake read failed", "error", err)
		conn.Close()
		return
	}

	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHello {
		s.writeHandshakeError(conn, protocol.ErrCodeMalformedFrame, "expected hello frame")
		conn.Close()
		return
	}
	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		s.writeHandshakeError(conn, protocol.ErrCodeMalformedFrame, "malformed hello")
		conn.Close()
		return
	}

	if hello.Version.Major != protocol.CurrentVersion.Major {
		s.logger.Info("rejecting stream: version mismatch",
			"remote", conn.RemoteAddr(), "client_version", hello.Version)
		s.writeHelloStatus(conn, protocol.HelloVersionMismatch, 0)
		conn.Close()
		return
	}

	st := newStream(s, conn)

	// Bootstrap and registration happen under the publish lock: the
	// queued frames plus everything published afterwards form one
	// unbroken revision chain for this client.
	s.publishMu.Lock()
	current := s.coordinator.BaseRevision()
	boot, outcome, err := s.bootstrapLocked(hello.LastRevision, current)
	if err != nil {
		s.publishMu.Unlock()
		s.logger.Error("bootstrap failed", "error", err)
		s.writeHelloStatus(conn, protocol.HelloInternalError, current)
		conn.Close()
		return
	}
	if err := s.attach(st); err != nil {
		s.publishMu.Unlock()
		s.logger.Info("rejecting stream: server busy", "remote", st.remote)
		s.writeHelloStatus(conn, protocol.HelloServerBusy, current)
		conn.Close()
		return
	}
	for _, f := range boot {
		if err := st.enqueue(f); err != nil {
			s.publishMu.Unlock()
			s.logger.Error("bootstrap enqueue failed", "remote", st.remote, "error", err)
			st.close()
			return
		}
	}
	s.publishMu.Unlock()

	// The write loop is not running yet, so this hello reaches the wire
	// ahead of everything queued above.
	if err := s.writeHelloStatus(conn, protocol.HelloOK, current); err != nil {
		s.logger.Error("hello write failed", "remote", st.remote, "error", err)
		st.close()
		return
	}

	s.metrics.resyncsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info("stream connected",
		"remote", st.remote,
		"last_revision", hello.LastRevision,
		"revision", current,
		"bootstrap", outcome)

	st.start()
}

// bootstrapLocked chooses how to bring a client from lastRevision to
// current: nothing, a replay from history, or one snapshot frame.
// Callers hold publishMu.
func (s *Server) bootstrapLocked(lastRevision, current uint64) (frames [][]byte, outcome string, err error) {
	if lastRevision == current {
		return nil, resyncCurrent, nil
	}
	if frames, ok := s.history.After(lastRevision); ok {
		return frames, resyncReplay, nil
	}
	_, snap, err := s.snapshotLocked()
	if err != nil {
		return nil, "", err
	}
	return [][]byte{snap}, resyncSnapshot, nil
}

// attach registers a stream. Callers hold publishMu.
func (s *Server) attach(st *stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.MaxStreams > 0 && len(s.streams) >= s.config.MaxStreams {
		return ErrTooManyStreams
	}
	s.streams[st] = struct{}{}
	s.metrics.streamsActive.Inc()
	s.metrics.streamsTotal.Inc()
	return nil
}

// detach removes a stream from the registry.
func (s *Server) detach(st *stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[st]; ok {
		delete(s.streams, st)
		s.metrics.streamsActive.Dec()
	}
}

// handleResync answers a mid-stream resync request with a reply frame
// carrying either the missed transactions or a fresh snapshot.
func (s *Server) handleResync(st *stream, from uint64) {
	var reply *protocol.ResyncReply
	var outcome string

	current := s.coordinator.BaseRevision()
	if from == current {
		reply = &protocol.ResyncReply{}
		outcome = resyncCurrent
	} else if txs, ok := s.history.TransactionsAfter(from); ok {
		reply = &protocol.ResyncReply{Transactions: txs}
		outcome = resyncReplay
	} else {
		s.publishMu.Lock()
		tx, _, err := s.snapshotLocked()
		s.publishMu.Unlock()
		if err != nil {
			s.logger.Error("resync snapshot failed", "remote", st.remote, "error", err)
			st.sendError(protocol.ErrCodeInternal, "snapshot failed", true)
			st.close()
			return
		}
		reply = &protocol.ResyncReply{
			Snapshot:     true,
			Transactions: []*mount.Transaction{tx},
		}
		outcome = resyncSnapshot
	}

	payload, err := protocol.EncodeResyncReply(reply)
	if err != nil {
		s.logger.Error("resync reply encode failed", "remote", st.remote, "error", err)
		return
	}
	frame := protocol.NewFrame(protocol.FrameResyncReply, payload)
	if err := st.enqueue(frame.Encode()); err != nil {
		if err == ErrSendBacklog {
			s.metrics.streamDrops.Inc()
		}
		st.close()
		return
	}

	s.metrics.resyncsTotal.WithLabelValues(outcome).Inc()
	s.logger.Info("resync", "remote", st.remote, "from", from, "outcome", outcome)
}

// writeHelloStatus writes a server hello directly on the connection.
// Only used before the stream's write loop starts.
func (s *Server) writeHelloStatus(conn *websocket.Conn, status protocol.HelloStatus, revision uint64) error {
	payload := protocol.EncodeServerHello(&protocol.ServerHello{
		Status:     status,
		Revision:   revision,
		ServerTime: uint64(time.Now().UnixMilli()),
	})
	frame := protocol.NewFrame(protocol.FrameHello, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// writeHandshakeError writes a fatal error frame directly on the
// connection. Only used before the stream's write loop starts.
func (s *Server) writeHandshakeError(conn *websocket.Conn, code protocol.ErrorCode, message string) {
	payload := protocol.EncodeError(&protocol.ErrorMessage{
		Code:    code,
		Message: message,
		Fatal:   true,
	})
	frame := protocol.NewFrame(protocol.FrameError, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status   string `json:"status"`
		Revision uint64 `json:"revision"`
		Streams  int    `json:"streams"`
	}{
		Status:   "ok",
		Revision: s.Revision(),
		Streams:  s.StreamCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes all streams and stops the HTTP server. The journal is
// not closed; its owner closes it once nothing more will be published.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.mu.RLock()
	streams := make([]*stream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.RUnlock()
	for _, st := range streams {
		st.close()
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
