package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.binary != defaultBinary {
		t.Fatalf("binary: %q", cfg.binary)
	}
	if cfg.refresh != defaultRefreshInterval {
		t.Fatalf("refresh: %v", cfg.refresh)
	}
	if cfg.cmdTimeout != defaultCommandTimeout || cfg.pingTimeout != defaultPingTimeout {
		t.Fatalf("timeouts: %v %v", cfg.cmdTimeout, cfg.pingTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	text := "binary: /opt/ts/tailscale\nrefresh_seconds: 30\nping_timeout_seconds: 5\nverbose: true\n"
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.binary != "/opt/ts/tailscale" {
		t.Fatalf("binary: %q", cfg.binary)
	}
	if cfg.refresh != 30*time.Second {
		t.Fatalf("refresh: %v", cfg.refresh)
	}
	if cfg.pingTimeout != 5*time.Second {
		t.Fatalf("ping timeout: %v", cfg.pingTimeout)
	}
	if cfg.cmdTimeout != defaultCommandTimeout {
		t.Fatalf("cmd timeout should keep default: %v", cfg.cmdTimeout)
	}
	if !cfg.verbose {
		t.Fatalf("verbose not set")
	}
}

func TestLoadConfigClampsIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("refresh_seconds: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.refresh != 2*time.Second {
		t.Fatalf("refresh not clamped: %v", cfg.refresh)
	}
}

func TestLoadConfigBadYAMLIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("refresh_seconds: [oops\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
