package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the runtime configuration for the fleet daemon. Values come
// from an optional TOML file and are overridden by WAFLEET_* environment
// variables.
type Config struct {
	// DataDir holds per-number session credential stores, QR artifacts and logs.
	DataDir string `toml:"data_dir"`
	// DBPath is the application store. Mandatory; the process refuses to
	// start without it.
	DBPath string `toml:"db_path"`

	LogLevel string `toml:"log_level"`

	QRExpirySeconds int `toml:"qr_expiry_seconds"`
	PollIntervalMS  int `toml:"poll_interval_ms"`

	ReconnectBackoffMS   int `toml:"reconnect_backoff_ms"`
	ReconnectMaxAttempts int `toml:"reconnect_max_attempts"`

	BindingCacheTTLSeconds int `toml:"binding_cache_ttl_seconds"`
	ReplyQueueSize         int `toml:"reply_queue_size"`
}

// Defaults mirror the runtime's historical behavior: 60s QR expiry, 15s
// reconciliation poll, 5s reconnect backoff, 60s binding cache.
func defaults() *Config {
	return &Config{
		DataDir:                "./session-data",
		LogLevel:               "info",
		QRExpirySeconds:        60,
		PollIntervalMS:         15000,
		ReconnectBackoffMS:     5000,
		ReconnectMaxAttempts:   10,
		BindingCacheTTLSeconds: 60,
		ReplyQueueSize:         256,
	}
}

// Load reads config from the given TOML path (missing file is not an error)
// and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("WAFLEET_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("WAFLEET_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("WAFLEET_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	envInt("WAFLEET_QR_EXPIRY_SECONDS", &c.QRExpirySeconds)
	envInt("WAFLEET_POLL_INTERVAL_MS", &c.PollIntervalMS)
	envInt("WAFLEET_RECONNECT_BACKOFF_MS", &c.ReconnectBackoffMS)
	envInt("WAFLEET_RECONNECT_MAX_ATTEMPTS", &c.ReconnectMaxAttempts)
	envInt("WAFLEET_BINDING_CACHE_TTL_SECONDS", &c.BindingCacheTTLSeconds)
	envInt("WAFLEET_REPLY_QUEUE_SIZE", &c.ReplyQueueSize)
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// Validate checks mandatory settings. A missing store path is fatal at
// startup, before any session work begins.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path (or WAFLEET_DB_PATH) is required")
	}
	if c.DataDir == "" {
		return errors.New("data_dir (or WAFLEET_DATA_DIR) is required")
	}
	return nil
}

// QRExpiry returns the QR token lifetime.
func (c *Config) QRExpiry() time.Duration {
	return time.Duration(c.QRExpirySeconds) * time.Second
}

// PollInterval returns the reconciliation tick interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ReconnectBackoff returns the initial reconnect delay.
func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffMS) * time.Millisecond
}

// BindingCacheTTL returns the bot binding cache lifetime.
func (c *Config) BindingCacheTTL() time.Duration {
	return time.Duration(c.BindingCacheTTLSeconds) * time.Second
}

// LogPath returns the daemon log file path under the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "logs", "wafleetd.log")
}
