package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stratum-ui/stratum/pkg/journal"
)

// Config holds configuration for the mount stream server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 1024. Client frames are small (hello, resync requests).
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Timeouts

	// HandshakeTimeout is the maximum time to wait for the client hello.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ReadTimeout is the maximum time between client messages or pongs
	// before the stream is considered dead.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// PingInterval is the time between WebSocket pings. Must be shorter
	// than ReadTimeout or healthy idle streams get reaped.
	// Default: 30 seconds.
	PingInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout is the HTTP header read timeout.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the HTTP keep-alive idle timeout.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// Limits

	// MaxMessageSize is the maximum size of an incoming WebSocket
	// message. Clients only send hellos and resync requests.
	// Default: 4KB.
	MaxMessageSize int64

	// MaxStreams is the maximum number of concurrent streams.
	// 0 means no limit.
	// Default: 0 (no limit).
	MaxStreams int

	// HistoryLimit is the number of recent transactions kept for
	// reconnect replay. Older gaps are answered with a snapshot.
	// Default: 128.
	HistoryLimit int

	// SendBuffer is the per-stream outgoing frame queue length. A stream
	// whose queue overflows is dropped.
	// Default: 256.
	SendBuffer int

	// Features

	// Reparenting enables move detection in the differ. When false,
	// subtrees that change parents are torn down and recreated.
	// Default (via DefaultConfig): true.
	Reparenting bool

	// Plumbing

	// Journal receives every published transaction payload. When nil,
	// transactions are not persisted.
	Journal journal.Journal

	// Registry is the Prometheus registry for server metrics. When nil,
	// metrics register on the default registry and /metrics serves the
	// default gatherer.
	Registry *prometheus.Registry

	// Logger is the structured logger.
	// Default: slog.Default with a component attribute.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadBufferSize:    1024,
		WriteBufferSize:   4096,
		CheckOrigin:       SameOriginCheck,
		HandshakeTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		PingInterval:      30 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxMessageSize:    4 * 1024,
		MaxStreams:        0,
		HistoryLimit:      128,
		SendBuffer:        256,
		Reparenting:       true,
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("server: config: empty address")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("server: config: history limit %d, must be positive", c.HistoryLimit)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("server: config: send buffer %d, must be positive", c.SendBuffer)
	}
	if c.MaxStreams < 0 {
		return fmt.Errorf("server: config: max streams %d, must not be negative", c.MaxStreams)
	}
	if c.PingInterval >= c.ReadTimeout {
		return fmt.Errorf("server: config: ping interval %v must be shorter than read timeout %v",
			c.PingInterval, c.ReadTimeout)
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// SameOriginCheck validates that the WebSocket request origin matches the
// host. Requests without an Origin header (same-origin fetches, CLI
// clients) are allowed.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
