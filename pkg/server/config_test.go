package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stratum-ui/stratum/pkg/shadow"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	if c.Address != ":8080" {
		t.Errorf("Expected address :8080, got %s", c.Address)
	}
	if c.ReadTimeout != 60*time.Second {
		t.Errorf("Expected read timeout 60s, got %v", c.ReadTimeout)
	}
	if c.PingInterval >= c.ReadTimeout {
		t.Error("Default ping interval must be shorter than the read timeout")
	}
	if c.HistoryLimit != 128 {
		t.Errorf("Expected history limit 128, got %d", c.HistoryLimit)
	}
	if !c.Reparenting {
		t.Error("Expected reparenting enabled by default")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default config failed validation: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty address", func(c *Config) { c.Address = "" }, true},
		{"zero history", func(c *Config) { c.HistoryLimit = 0 }, true},
		{"negative send buffer", func(c *Config) { c.SendBuffer = -1 }, true},
		{"negative max streams", func(c *Config) { c.MaxStreams = -1 }, true},
		{"ping slower than read timeout", func(c *Config) {
			c.PingInterval = 2 * time.Minute
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected valid config, got %v", err)
			}
		})
	}
}

func TestNewFillsDefaults(t *testing.T) {
	tree := shadow.NewTree(shadow.New(1, "Root"))
	s := New(tree, &Config{
		Address:  ":0",
		Registry: prometheus.NewRegistry(),
	})

	c := s.Config()
	if c.ReadTimeout != 60*time.Second {
		t.Errorf("Expected default read timeout, got %v", c.ReadTimeout)
	}
	if c.HandshakeTimeout != 10*time.Second {
		t.Errorf("Expected default handshake timeout, got %v", c.HandshakeTimeout)
	}
	if c.SendBuffer != 256 {
		t.Errorf("Expected default send buffer, got %d", c.SendBuffer)
	}
	if c.CheckOrigin == nil {
		t.Error("Expected default origin check")
	}
	if c.Journal == nil {
		t.Error("Expected a journal to be installed")
	}
	if c.Address != ":0" {
		t.Errorf("Expected explicit address to survive, got %s", c.Address)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Filled config failed validation: %v", err)
	}
}

func TestNewDoesNotMutateCallerConfig(t *testing.T) {
	tree := shadow.NewTree(shadow.New(1, "Root"))
	caller := &Config{Registry: prometheus.NewRegistry()}
	New(tree, caller)

	if caller.Address != "" {
		t.Errorf("Caller config was mutated: address %q", caller.Address)
	}
	if caller.Journal != nil {
		t.Error("Caller config was mutated: journal installed")
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin", "", "example.com", true},
		{"same host", "https://example.com", "example.com", true},
		{"same host with port", "http://localhost:3000", "localhost:3000", true},
		{"different host", "https://evil.test", "example.com", false},
		{"different port", "http://localhost:4000", "localhost:3000", false},
		{"garbage origin", "http://bad\x00origin", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/mount", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := SameOriginCheck(r); got != tt.want {
				t.Errorf("SameOriginCheck(origin=%q, host=%q) = %v, want %v",
					tt.origin, tt.host, got, tt.want)
			}
		})
	}
}
