package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stratum-ui/stratum/pkg/protocol"
)

// stream is one connected mount client. Frames are queued on send and
// drained by writeLoop; every connection write goes through the write
// lock, so fatal errors can bypass the queue without interleaving.
// readLoop handles the little the client is allowed to say: resync
// requests and error reports.
type stream struct {
	server *Server
	conn   *websocket.Conn
	logger *slog.Logger
	remote string

	send chan []byte
	done chan struct{}

	// writeMu serializes connection writes between writeLoop and the
	// synchronous fatal-error path.
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newStream(s *Server, conn *websocket.Conn) *stream {
	remote := conn.RemoteAddr().String()
	return &stream{
		server: s,
		conn:   conn,
		logger: s.logger.With("remote", remote),
		remote: remote,
		send:   make(chan []byte, s.config.SendBuffer),
		done:   make(chan struct{}),
	}
}

// start launches the stream's loops. Call after the handshake completes.
func (st *stream) start() {
	go st.readLoop()
	go st.writeLoop()
}

// enqueue queues an encoded frame for delivery. It never blocks: a full
// queue returns ErrSendBacklog and the caller decides the stream's fate.
func (st *stream) enqueue(frame []byte) error {
	select {
	case <-st.done:
		return ErrStreamClosed
	default:
	}

	select {
	case st.send <- frame:
		st.server.metrics.framesSent.Inc()
		st.server.metrics.bytesSent.Add(float64(len(frame)))
		return nil
	default:
		return ErrSendBacklog
	}
}

// close tears the stream down and detaches it from the server. Safe to
// call multiple times and from any goroutine.
func (st *stream) close() {
	st.closeOnce.Do(func() {
		close(st.done)
		st.conn.Close()
		st.server.detach(st)
	})
}

// readLoop continuously reads client frames until the connection dies.
func (st *stream) readLoop() {
	defer st.close()

	st.conn.SetReadDeadline(time.Now().Add(st.server.config.ReadTimeout))
	st.conn.SetPongHandler(func(string) error {
		st.conn.SetReadDeadline(time.Now().Add(st.server.config.ReadTimeout))
		return nil
	})

	for {
		_, msg, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				st.logger.Error("read error", "error", err)
			}
			return
		}
		st.conn.SetReadDeadline(time.Now().Add(st.server.config.ReadTimeout))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			st.logger.Error("frame decode error", "error", err)
			st.sendError(protocol.ErrCodeMalformedFrame, "malformed frame", false)
			continue
		}

		switch frame.Type {
		case protocol.FrameResyncRequest:
			req, err := protocol.DecodeResyncRequest(frame.Payload)
			if err != nil {
				st.logger.Error("resync request decode error", "error", err)
				st.sendError(protocol.ErrCodeMalformedFrame, "malformed resync request", false)
				continue
			}
			st.server.handleResync(st, req.FromRevision)

		case protocol.FrameHello:
			// The hello exchange already happened; a second one means the
			// client lost track of its own state.
			st.sendError(protocol.ErrCodeStreamState, "unexpected hello", true)
			return

		case protocol.FrameError:
			em, err := protocol.DecodeError(frame.Payload)
			if err != nil {
				st.logger.Error("error frame decode error", "error", err)
				continue
			}
			st.logger.Warn("client reported error",
				"code", em.Code, "message", em.Message, "fatal", em.Fatal)
			if em.Fatal {
				return
			}

		default:
			st.logger.Warn("unknown frame type", "type", frame.Type)
		}
	}
}

// writeLoop drains the send queue and keeps the connection alive with
// pings. It runs until the stream closes or a write fails.
func (st *stream) writeLoop() {
	ticker := time.NewTicker(st.server.config.PingInterval)
	defer ticker.Stop()
	defer st.close()

	for {
		select {
		case frame := <-st.send:
			if err := st.write(websocket.BinaryMessage, frame); err != nil {
				st.logger.Error("write error", "error", err)
				return
			}

		case <-ticker.C:
			if err := st.write(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-st.done:
			return
		}
	}
}

// write puts one message on the connection under the write lock, with
// the configured deadline.
func (st *stream) write(messageType int, data []byte) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	st.conn.SetWriteDeadline(time.Now().Add(st.server.config.WriteTimeout))
	return st.conn.WriteMessage(messageType, data)
}

// sendError delivers an error frame to the client. Fatal errors are
// written synchronously: the caller tears the stream down right after,
// and the frame has to reach the wire before the connection closes.
// Non-fatal errors are queued best effort; a stream too backed up for
// an error report is about to be dropped anyway.
func (st *stream) sendError(code protocol.ErrorCode, message string, fatal bool) {
	payload := protocol.EncodeError(&protocol.ErrorMessage{
		Code:    code,
		Message: message,
		Fatal:   fatal,
	})
	frame := protocol.NewFrame(protocol.FrameError, payload).Encode()

	if fatal {
		if err := st.write(websocket.BinaryMessage, frame); err != nil {
			st.logger.Debug("fatal error frame not sent", "code", code, "error", err)
		}
		return
	}
	if err := st.enqueue(frame); err != nil {
		st.logger.Debug("error frame not sent", "code", code, "error", err)
	}
}
