package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stratum-ui/stratum/pkg/mount"
	"github.com/stratum-ui/stratum/pkg/protocol"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

func newTestServer(t *testing.T, config *Config) (*Server, *httptest.Server) {
	t.Helper()
	if config == nil {
		config = &Config{}
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tree := shadow.NewTree(shadow.New(1, "Root"))
	s := New(tree, config)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

// commitLabel appends one mounted label child to the root.
func commitLabel(t *testing.T, tree *shadow.Tree, tag shadow.Tag, text string) {
	t.Helper()
	_, err := tree.Commit(func(root *shadow.Node) *shadow.Node {
		label := shadow.New(tag, "Label",
			shadow.WithTraits(shadow.TraitFormsView|shadow.TraitFormsStackingContext),
			shadow.WithProps(shadow.Props{"text": text}))
		children := append([]*shadow.Node{}, root.Children()...)
		children = append(children, label)
		return root.Clone(shadow.WithChildren(children...))
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func mustPublish(t *testing.T, s *Server) *mount.Transaction {
	t.Helper()
	tx, err := s.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if tx == nil {
		t.Fatal("Expected a transaction, the tree had not moved")
	}
	return tx
}

func rawDial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/mount"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeClientHello(t *testing.T, conn *websocket.Conn, version protocol.ProtocolVersion, lastRevision uint64) {
	t.Helper()
	payload := protocol.EncodeClientHello(&protocol.ClientHello{
		Version:      version,
		LastRevision: lastRevision,
	})
	frame := protocol.NewFrame(protocol.FrameHello, payload)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("Hello write failed: %v", err)
	}
}

func readWireFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("Frame decode failed: %v", err)
	}
	return frame
}

func expectServerHello(t *testing.T, conn *websocket.Conn) *protocol.ServerHello {
	t.Helper()
	frame := readWireFrame(t, conn)
	if frame.Type != protocol.FrameHello {
		t.Fatalf("Expected hello frame, got %s", frame.Type)
	}
	hello, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatalf("Server hello decode failed: %v", err)
	}
	return hello
}

func expectTransaction(t *testing.T, conn *websocket.Conn) (*mount.Transaction, protocol.FrameFlags) {
	t.Helper()
	frame := readWireFrame(t, conn)
	if frame.Type != protocol.FrameTransaction {
		t.Fatalf("Expected transaction frame, got %s", frame.Type)
	}
	tx, err := protocol.DecodeTransaction(frame.Payload)
	if err != nil {
		t.Fatalf("Transaction decode failed: %v", err)
	}
	return tx, frame.Flags
}

// dialMount connects, completes the hello exchange, and returns the
// server's hello. Once the hello is read the stream is attached: every
// later publish reaches this client.
func dialMount(t *testing.T, ts *httptest.Server, lastRevision uint64) (*websocket.Conn, *protocol.ServerHello) {
	t.Helper()
	conn := rawDial(t, ts)
	writeClientHello(t, conn, protocol.CurrentVersion, lastRevision)
	hello := expectServerHello(t, conn)
	return conn, hello
}

func writeResyncRequest(t *testing.T, conn *websocket.Conn, from uint64) {
	t.Helper()
	payload := protocol.EncodeResyncRequest(&protocol.ResyncRequest{FromRevision: from})
	frame := protocol.NewFrame(protocol.FrameResyncRequest, payload)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("Resync request write failed: %v", err)
	}
}

func expectResyncReply(t *testing.T, conn *websocket.Conn) *protocol.ResyncReply {
	t.Helper()
	frame := readWireFrame(t, conn)
	if frame.Type != protocol.FrameResyncReply {
		t.Fatalf("Expected resync reply frame, got %s", frame.Type)
	}
	reply, err := protocol.DecodeResyncReply(frame.Payload)
	if err != nil {
		t.Fatalf("Resync reply decode failed: %v", err)
	}
	return reply
}

func TestMountLiveStream(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn, hello := dialMount(t, ts, 0)

	if hello.Status != protocol.HelloOK {
		t.Fatalf("Expected HelloOK, got %s", hello.Status)
	}
	if hello.Revision != 0 {
		t.Errorf("Expected revision 0 before any publish, got %d", hello.Revision)
	}

	commitLabel(t, s.Tree(), 10, "hello")
	pub := mustPublish(t, s)

	tx, flags := expectTransaction(t, conn)
	if flags.Has(protocol.FlagSnapshot) {
		t.Error("Live frame should not carry the snapshot flag")
	}
	if tx.BaseRevision != 0 || tx.Revision != pub.Revision {
		t.Errorf("Expected transaction 0 -> %d, got %d -> %d",
			pub.Revision, tx.BaseRevision, tx.Revision)
	}
	if len(tx.Mutations) != 2 {
		t.Fatalf("Expected create + insert, got %d mutations", len(tx.Mutations))
	}
	if tx.Mutations[0].Type != mount.MutationCreate {
		t.Errorf("Expected Create first, got %s", tx.Mutations[0].Type)
	}
	if tx.Mutations[1].Type != mount.MutationInsert {
		t.Errorf("Expected Insert second, got %s", tx.Mutations[1].Type)
	}
}

func TestPublishIdleReturnsNil(t *testing.T) {
	s, _ := newTestServer(t, nil)

	// The fresh tree is itself a revision; the first publish captures it
	// as an empty transaction.
	first := mustPublish(t, s)
	if first.Revision != 1 || len(first.Mutations) != 0 {
		t.Errorf("Expected empty transaction at revision 1, got %d mutations at %d",
			len(first.Mutations), first.Revision)
	}

	tx, err := s.Publish(context.Background())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if tx != nil {
		t.Errorf("Expected no transaction for an unchanged tree, got revision %d", tx.Revision)
	}

	if got := testutil.ToFloat64(s.metrics.transactionsTotal); got != 1 {
		t.Errorf("Expected 1 published transaction in metrics, got %v", got)
	}
}

func TestPublishTransparentCommit(t *testing.T) {
	s, _ := newTestServer(t, nil)
	mustPublish(t, s)

	// A trait-less node is a transparent wrapper: the revision advances
	// but nothing reaches the mount stage.
	_, err := s.Tree().Commit(func(root *shadow.Node) *shadow.Node {
		wrapper := shadow.New(20, "Fragment")
		return root.Clone(shadow.WithChildren(wrapper))
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	tx := mustPublish(t, s)
	if len(tx.Mutations) != 0 {
		t.Errorf("Expected no mutations for a transparent-only commit, got %d", len(tx.Mutations))
	}
}

func TestMountReplayBootstrap(t *testing.T) {
	s, ts := newTestServer(t, nil)

	commitLabel(t, s.Tree(), 10, "one")
	p1 := mustPublish(t, s)
	commitLabel(t, s.Tree(), 11, "two")
	p2 := mustPublish(t, s)

	conn, hello := dialMount(t, ts, p1.Revision)
	if hello.Revision != p2.Revision {
		t.Errorf("Expected hello revision %d, got %d", p2.Revision, hello.Revision)
	}

	tx, flags := expectTransaction(t, conn)
	if flags.Has(protocol.FlagSnapshot) {
		t.Error("Replay should not carry the snapshot flag")
	}
	if tx.BaseRevision != p1.Revision || tx.Revision != p2.Revision {
		t.Errorf("Expected replay %d -> %d, got %d -> %d",
			p1.Revision, p2.Revision, tx.BaseRevision, tx.Revision)
	}

	// The replayed client chains straight into the live stream.
	commitLabel(t, s.Tree(), 12, "three")
	p3 := mustPublish(t, s)
	tx, _ = expectTransaction(t, conn)
	if tx.BaseRevision != p2.Revision || tx.Revision != p3.Revision {
		t.Errorf("Expected live %d -> %d, got %d -> %d",
			p2.Revision, p3.Revision, tx.BaseRevision, tx.Revision)
	}
}

func TestMountSnapshotBootstrap(t *testing.T) {
	s, ts := newTestServer(t, &Config{HistoryLimit: 1})

	commitLabel(t, s.Tree(), 10, "one")
	mustPublish(t, s)
	commitLabel(t, s.Tree(), 11, "two")
	p2 := mustPublish(t, s)

	// The first transaction has been evicted; a fresh client cannot be
	// served by replay.
	conn, _ := dialMount(t, ts, 0)
	tx, flags := expectTransaction(t, conn)
	if !flags.Has(protocol.FlagSnapshot) {
		t.Fatal("Expected a snapshot frame")
	}
	if tx.BaseRevision != 0 || tx.Revision != p2.Revision {
		t.Errorf("Expected snapshot 0 -> %d, got %d -> %d",
			p2.Revision, tx.BaseRevision, tx.Revision)
	}

	stub := mount.NewStubTree(shadow.View{Tag: 1, Component: "Root"})
	if err := stub.Apply(tx.Mutations...); err != nil {
		t.Fatalf("Snapshot did not apply cleanly: %v", err)
	}
	root := stub.Root()
	if len(root.Children) != 2 {
		t.Fatalf("Expected 2 mounted children, got %d", len(root.Children))
	}
	if got := root.Children[0].View.Props["text"]; got != "one" {
		t.Errorf("Expected first child text %q, got %v", "one", got)
	}
	if got := root.Children[1].View.Props["text"]; got != "two" {
		t.Errorf("Expected second child text %q, got %v", "two", got)
	}
}

func TestResyncReplayAndCurrent(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn, _ := dialMount(t, ts, 0)

	commitLabel(t, s.Tree(), 10, "one")
	p1 := mustPublish(t, s)
	commitLabel(t, s.Tree(), 11, "two")
	p2 := mustPublish(t, s)
	expectTransaction(t, conn)
	expectTransaction(t, conn)

	writeResyncRequest(t, conn, p1.Revision)
	reply := expectResyncReply(t, conn)
	if reply.Snapshot {
		t.Error("Expected a replay reply, got a snapshot")
	}
	if len(reply.Transactions) != 1 || reply.Transactions[0].Revision != p2.Revision {
		t.Fatalf("Expected replay of revision %d, got %d transactions", p2.Revision, len(reply.Transactions))
	}

	writeResyncRequest(t, conn, p2.Revision)
	reply = expectResyncReply(t, conn)
	if reply.Snapshot || len(reply.Transactions) != 0 {
		t.Errorf("Expected an empty reply for a current client, got snapshot=%v with %d transactions",
			reply.Snapshot, len(reply.Transactions))
	}
}

func TestResyncSnapshotWhenGapTooOld(t *testing.T) {
	s, ts := newTestServer(t, &Config{HistoryLimit: 1})
	conn, _ := dialMount(t, ts, 0)

	commitLabel(t, s.Tree(), 10, "one")
	mustPublish(t, s)
	commitLabel(t, s.Tree(), 11, "two")
	p2 := mustPublish(t, s)
	expectTransaction(t, conn)
	expectTransaction(t, conn)

	writeResyncRequest(t, conn, 999)
	reply := expectResyncReply(t, conn)
	if !reply.Snapshot {
		t.Fatal("Expected a snapshot reply for an unbridgeable gap")
	}
	if len(reply.Transactions) != 1 {
		t.Fatalf("Expected a single snapshot transaction, got %d", len(reply.Transactions))
	}
	snap := reply.Transactions[0]
	if snap.BaseRevision != 0 || snap.Revision != p2.Revision {
		t.Errorf("Expected snapshot 0 -> %d, got %d -> %d",
			p2.Revision, snap.BaseRevision, snap.Revision)
	}
}

func TestMountVersionMismatch(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := rawDial(t, ts)

	writeClientHello(t, conn, protocol.ProtocolVersion{Major: 9}, 0)
	hello := expectServerHello(t, conn)
	if hello.Status != protocol.HelloVersionMismatch {
		t.Fatalf("Expected HelloVersionMismatch, got %s", hello.Status)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to close after a version reject")
	}
}

func TestMountRejectsNonHelloFirstFrame(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := rawDial(t, ts)

	payload := protocol.EncodeResyncRequest(&protocol.ResyncRequest{FromRevision: 0})
	frame := protocol.NewFrame(protocol.FrameResyncRequest, payload)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := readWireFrame(t, conn)
	if got.Type != protocol.FrameError {
		t.Fatalf("Expected an error frame, got %s", got.Type)
	}
	em, err := protocol.DecodeError(got.Payload)
	if err != nil {
		t.Fatalf("Error decode failed: %v", err)
	}
	if em.Code != protocol.ErrCodeMalformedFrame || !em.Fatal {
		t.Errorf("Expected fatal malformed-frame error, got %s (fatal=%v)", em.Code, em.Fatal)
	}
}

func TestSecondHelloIsFatal(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn, _ := dialMount(t, ts, 0)

	writeClientHello(t, conn, protocol.CurrentVersion, 0)
	got := readWireFrame(t, conn)
	if got.Type != protocol.FrameError {
		t.Fatalf("Expected an error frame, got %s", got.Type)
	}
	em, err := protocol.DecodeError(got.Payload)
	if err != nil {
		t.Fatalf("Error decode failed: %v", err)
	}
	if em.Code != protocol.ErrCodeStreamState || !em.Fatal {
		t.Errorf("Expected fatal stream-state error, got %s (fatal=%v)", em.Code, em.Fatal)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to close after a second hello")
	}
}

func TestMaxStreams(t *testing.T) {
	s, ts := newTestServer(t, &Config{MaxStreams: 1})

	_, hello1 := dialMount(t, ts, 0)
	if hello1.Status != protocol.HelloOK {
		t.Fatalf("Expected first stream accepted, got %s", hello1.Status)
	}

	conn2 := rawDial(t, ts)
	writeClientHello(t, conn2, protocol.CurrentVersion, 0)
	hello2 := expectServerHello(t, conn2)
	if hello2.Status != protocol.HelloServerBusy {
		t.Fatalf("Expected HelloServerBusy, got %s", hello2.Status)
	}

	if got := s.StreamCount(); got != 1 {
		t.Errorf("Expected 1 attached stream, got %d", got)
	}
}

func TestHealthz(t *testing.T) {
	s, ts := newTestServer(t, nil)
	commitLabel(t, s.Tree(), 10, "one")
	pub := mustPublish(t, s)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Status   string `json:"status"`
		Revision uint64 `json:"revision"`
		Streams  int    `json:"streams"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Expected status ok, got %q", body.Status)
	}
	if body.Revision != pub.Revision {
		t.Errorf("Expected revision %d, got %d", pub.Revision, body.Revision)
	}
	if body.Streams != 0 {
		t.Errorf("Expected 0 streams, got %d", body.Streams)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, ts := newTestServer(t, nil)
	commitLabel(t, s.Tree(), 10, "one")
	mustPublish(t, s)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(string(body), "stratum_server_transactions_published_total") {
		t.Error("Expected transaction counter in metrics exposition")
	}
}

func TestShutdownClosesStreams(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn, _ := dialMount(t, ts, 0)

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if got := s.StreamCount(); got != 0 {
		t.Errorf("Expected 0 streams after shutdown, got %d", got)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to close on shutdown")
	}
}
