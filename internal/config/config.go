package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/stratum-ui/stratum/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "stratum.json"

	// DefaultPort is the default mount stream server port.
	DefaultPort = 8080

	// DefaultHost is the default mount stream server host.
	DefaultHost = ""

	// DefaultHistoryLimit is the default number of transactions kept for
	// reconnect replay.
	DefaultHistoryLimit = 128

	// DefaultSendBuffer is the default per-stream outgoing frame queue
	// length.
	DefaultSendBuffer = 256

	// DefaultJournalPath is the default bolt journal location.
	DefaultJournalPath = "stratum.journal"

	// DefaultMetricsNamespace is the default Prometheus namespace.
	DefaultMetricsNamespace = "stratum"
)

// Journal backends.
const (
	JournalNone = "none"
	JournalBolt = "bolt"
	JournalS3   = "s3"
)

// Config represents the complete stratum.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Version is the project version.
	Version string `json:"version,omitempty"`

	// Server contains mount stream server configuration.
	Server ServerConfig `json:"server,omitempty"`

	// Mount contains differ configuration.
	Mount MountConfig `json:"mount,omitempty"`

	// Journal contains transaction journal configuration.
	Journal JournalConfig `json:"journal,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains mount stream server settings.
type ServerConfig struct {
	// Host is the host to bind to. Empty means all interfaces.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// HistoryLimit is the number of recent transactions kept for
	// reconnect replay.
	HistoryLimit int `json:"historyLimit,omitempty"`

	// MaxStreams caps concurrent mount streams. 0 means no limit.
	MaxStreams int `json:"maxStreams,omitempty"`

	// SendBuffer is the per-stream outgoing frame queue length.
	SendBuffer int `json:"sendBuffer,omitempty"`

	// AllowAnyOrigin disables the same-origin WebSocket check.
	AllowAnyOrigin bool `json:"allowAnyOrigin,omitempty"`
}

// MountConfig contains differ settings.
type MountConfig struct {
	// Reparenting enables move detection in the differ.
	Reparenting bool `json:"reparenting"`

	// MetricsNamespace is the Prometheus namespace for mount metrics.
	MetricsNamespace string `json:"metricsNamespace,omitempty"`
}

// JournalConfig contains transaction journal settings.
type JournalConfig struct {
	// Backend selects the journal store: "none", "bolt", or "s3".
	Backend string `json:"backend,omitempty"`

	// Path is the bolt database file (backend "bolt").
	Path string `json:"path,omitempty"`

	// Bucket is the S3 bucket name (backend "s3").
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 key prefix (backend "s3").
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region (backend "s3").
	Region string `json:"region,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `json:"level,omitempty"`

	// Format is the log output format: "text" or "json".
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Version: "0.1.0",
		Server: ServerConfig{
			Host:         DefaultHost,
			Port:         DefaultPort,
			HistoryLimit: DefaultHistoryLimit,
			SendBuffer:   DefaultSendBuffer,
		},
		Mount: MountConfig{
			Reparenting:      true,
			MetricsNamespace: DefaultMetricsNamespace,
		},
		Journal: JournalConfig{
			Backend: JournalNone,
			Path:    DefaultJournalPath,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for stratum.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Create " + ConfigFileName + " or pass an explicit --config path")
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.HistoryLimit == 0 {
		c.Server.HistoryLimit = DefaultHistoryLimit
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Mount.MetricsNamespace == "" {
		c.Mount.MetricsNamespace = DefaultMetricsNamespace
	}
	if c.Journal.Backend == "" {
		c.Journal.Backend = JournalNone
	}
	if c.Journal.Backend == JournalBolt && c.Journal.Path == "" {
		c.Journal.Path = DefaultJournalPath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E103").
			WithDetail("Port must be between 0 and 65535, got " + strconv.Itoa(c.Server.Port))
	}
	if c.Server.HistoryLimit < 0 {
		return errors.New("E103").
			WithDetail("historyLimit must not be negative")
	}
	if c.Server.MaxStreams < 0 {
		return errors.New("E103").
			WithDetail("maxStreams must not be negative")
	}
	switch c.Journal.Backend {
	case JournalNone, JournalBolt:
	case JournalS3:
		if c.Journal.Bucket == "" {
			return errors.New("E103").
				WithDetail("journal backend s3 requires a bucket").
				WithSuggestion(`Set "journal": {"backend": "s3", "bucket": "..."} in ` + ConfigFileName)
		}
	default:
		return errors.New("E123").
			WithDetail("Unknown journal backend " + strconv.Quote(c.Journal.Backend)).
			WithSuggestion(`Use one of "none", "bolt", "s3"`)
	}
	return nil
}

// Address returns the listen address string for the server.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// JournalPath returns the absolute path to the bolt journal file.
func (c *Config) JournalPath() string {
	path := c.Journal.Path
	if path == "" {
		path = DefaultJournalPath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing stratum.json, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E101").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Create " + ConfigFileName + " at the project root")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
