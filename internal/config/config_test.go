package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.QRExpirySeconds != 60 {
		t.Errorf("qr_expiry_seconds = %d, want 60", cfg.QRExpirySeconds)
	}
	if cfg.PollIntervalMS != 15000 {
		t.Errorf("poll_interval_ms = %d, want 15000", cfg.PollIntervalMS)
	}
	if cfg.ReconnectBackoffMS != 5000 {
		t.Errorf("reconnect_backoff_ms = %d, want 5000", cfg.ReconnectBackoffMS)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "db_path = \"/tmp/fleet.db\"\nqr_expiry_seconds = 30\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/fleet.db" {
		t.Errorf("db_path = %q", cfg.DBPath)
	}
	if cfg.QRExpirySeconds != 30 {
		t.Errorf("qr_expiry_seconds = %d, want 30", cfg.QRExpirySeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("poll_interval_ms = 20000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WAFLEET_POLL_INTERVAL_MS", "500")
	t.Setenv("WAFLEET_DB_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollIntervalMS != 500 {
		t.Errorf("poll_interval_ms = %d, want 500 (env override)", cfg.PollIntervalMS)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Errorf("db_path = %q, want /tmp/env.db", cfg.DBPath)
	}
}

func TestValidateRequiresDBPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing db_path")
	}
	cfg.DBPath = "/tmp/x.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
