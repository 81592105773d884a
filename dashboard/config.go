package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tailview/common"
)

const (
	defaultBinary          = "tailscale"
	defaultRefreshInterval = 10 * time.Second
	defaultCommandTimeout  = 15 * time.Second
	defaultPingTimeout     = 20 * time.Second
)

// config is the resolved runtime configuration (file values with flag
// overrides applied, durations clamped to sane bounds).
type config struct {
	binary      string
	refresh     time.Duration
	cmdTimeout  time.Duration
	pingTimeout time.Duration
	verbose     bool
}

// fileConfig is the on-disk YAML shape. Durations are plain seconds.
type fileConfig struct {
	Binary                string `yaml:"binary"`
	RefreshSeconds        int    `yaml:"refresh_seconds"`
	CommandTimeoutSeconds int    `yaml:"command_timeout_seconds"`
	PingTimeoutSeconds    int    `yaml:"ping_timeout_seconds"`
	Verbose               bool   `yaml:"verbose"`
}

func defaultConfigPath() string {
	return common.ExpandPath("~/.config/tailview/config.yaml")
}

// loadConfig reads path and applies defaults. A missing file is not an
// error; the defaults stand. A file that exists but does not parse is an
// error so a typo never silently reverts settings.
func loadConfig(path string) (config, error) {
	cfg := config{
		binary:      defaultBinary,
		refresh:     defaultRefreshInterval,
		cmdTimeout:  defaultCommandTimeout,
		pingTimeout: defaultPingTimeout,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if fc.Binary != "" {
		cfg.binary = fc.Binary
	}
	if fc.RefreshSeconds > 0 {
		cfg.refresh = time.Duration(fc.RefreshSeconds) * time.Second
	}
	if fc.CommandTimeoutSeconds > 0 {
		cfg.cmdTimeout = time.Duration(fc.CommandTimeoutSeconds) * time.Second
	}
	if fc.PingTimeoutSeconds > 0 {
		cfg.pingTimeout = time.Duration(fc.PingTimeoutSeconds) * time.Second
	}
	cfg.verbose = fc.Verbose

	cfg.refresh = common.ClampDuration(cfg.refresh, 2*time.Second, 10*time.Minute)
	cfg.cmdTimeout = common.ClampDuration(cfg.cmdTimeout, 1*time.Second, 2*time.Minute)
	cfg.pingTimeout = common.ClampDuration(cfg.pingTimeout, 1*time.Second, 2*time.Minute)
	return cfg, nil
}
