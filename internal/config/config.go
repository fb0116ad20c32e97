// Package config loads contentsync settings from a JSONC or YAML file
// with environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config represents contentsync configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
	Retry   RetryConfig   `json:"retry" yaml:"retry"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// ServerConfig locates the content server
type ServerConfig struct {
	BaseURL      string `json:"base_url" yaml:"base_url"`
	ManifestPath string `json:"manifest_path" yaml:"manifest_path"`
}

// StorageConfig holds local content store settings
type StorageConfig struct {
	Root    string `json:"root" yaml:"root"`
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// HTTPConfig holds transport timeouts
type HTTPConfig struct {
	ConnectTimeout Duration `json:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    Duration `json:"read_timeout" yaml:"read_timeout"`
}

// RetryConfig holds retry budgets
type RetryConfig struct {
	ManifestAttempts int      `json:"manifest_attempts" yaml:"manifest_attempts"`
	BlockAttempts    int      `json:"block_attempts" yaml:"block_attempts"`
	Backoff          Duration `json:"backoff" yaml:"backoff"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Duration is a time.Duration written as a string ("10s") in config files.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration must be a string like \"10s\": %s", b)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ManifestPath: "manifest",
		},
		Storage: StorageConfig{
			Root: "content",
		},
		HTTP: HTTPConfig{
			ConnectTimeout: Duration(3 * time.Second),
			ReadTimeout:    Duration(10 * time.Second),
		},
		Retry: RetryConfig{
			ManifestAttempts: 5,
			BlockAttempts:    3,
			Backoff:          Duration(500 * time.Millisecond),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// JournalPath returns the journal database path, defaulting to a file in the store root.
func (c *Config) JournalPath() string {
	if c.Storage.Journal != "" {
		return c.Storage.Journal
	}
	return filepath.Join(c.Storage.Root, ".journal.db")
}

// Load reads path on top of the defaults, then applies environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// LoadFile is Load without environment overrides, for rewriting the file.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(jsonc.ToJSON(data), cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CONTENTSYNC_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("CONTENTSYNC_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("CONTENTSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CONTENTSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// Save writes cfg to path, in YAML or JSON depending on the extension.
func Save(path string, cfg *Config) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks settings needed to run updates
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is not configured. Run: contentsync config server.base_url https://cdn.example.com/content")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Retry.ManifestAttempts < 1 || c.Retry.BlockAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if c.HTTP.ConnectTimeout < 0 || c.HTTP.ReadTimeout < 0 || c.Retry.Backoff < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Keys lists the dotted keys accepted by GetValue and SetValue.
func Keys() []string {
	return []string{
		"server.base_url", "server.manifest_path",
		"storage.root", "storage.journal",
		"http.connect_timeout", "http.read_timeout",
		"retry.manifest_attempts", "retry.block_attempts", "retry.backoff",
		"log.level", "log.format",
	}
}

// GetValue retrieves a configuration value by key (e.g., "server.base_url")
func (c *Config) GetValue(key string) (string, error) {
	switch key {
	case "server.base_url":
		return c.Server.BaseURL, nil
	case "server.manifest_path":
		return c.Server.ManifestPath, nil
	case "storage.root":
		return c.Storage.Root, nil
	case "storage.journal":
		return c.JournalPath(), nil
	case "http.connect_timeout":
		return c.HTTP.ConnectTimeout.String(), nil
	case "http.read_timeout":
		return c.HTTP.ReadTimeout.String(), nil
	case "retry.manifest_attempts":
		return strconv.Itoa(c.Retry.ManifestAttempts), nil
	case "retry.block_attempts":
		return strconv.Itoa(c.Retry.BlockAttempts), nil
	case "retry.backoff":
		return c.Retry.Backoff.String(), nil
	case "log.level":
		return c.Log.Level, nil
	case "log.format":
		return c.Log.Format, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// SetValue sets a configuration value by key (e.g., "retry.backoff", "1s")
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "server.base_url":
		c.Server.BaseURL = value
	case "server.manifest_path":
		c.Server.ManifestPath = value
	case "storage.root":
		c.Storage.Root = value
	case "storage.journal":
		c.Storage.Journal = value
	case "http.connect_timeout":
		return c.HTTP.ConnectTimeout.parse(value)
	case "http.read_timeout":
		return c.HTTP.ReadTimeout.parse(value)
	case "retry.manifest_attempts":
		return setInt(&c.Retry.ManifestAttempts, value)
	case "retry.block_attempts":
		return setInt(&c.Retry.BlockAttempts, value)
	case "retry.backoff":
		return c.Retry.Backoff.parse(value)
	case "log.level":
		c.Log.Level = value
	case "log.format":
		c.Log.Format = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer %q", value)
	}
	*dst = n
	return nil
}
