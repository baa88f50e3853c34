// Package config loads panerun configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (PANERUN_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .panerun.yaml in current directory
//  2. ~/.config/panerun/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// HostConfig describes a remote tmux reachable over ssh.
type HostConfig struct {
	Host   string `yaml:"host"`
	User   string `yaml:"user"`
	SSHKey string `yaml:"ssh_key"`
}

// Config holds all panerun configuration.
type Config struct {
	// Tracking policy
	CaptureLines   int    `yaml:"capture_lines"`
	DefaultTimeout string `yaml:"default_timeout"` // Go duration string, "0"/"off" disables
	RetryGrace     string `yaml:"retry_grace"`     // Go duration string
	MaxRetries     int    `yaml:"max_retries"`
	Protocol       string `yaml:"protocol"` // "wrap" or "hook"

	// Poll cadence for wait/watch
	PollInterval string `yaml:"poll_interval"`

	// History database path (empty = $XDG_STATE_HOME/panerun/history.db)
	HistoryDB string `yaml:"history_db"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Remote tmux servers, keyed by nickname
	Hosts map[string]HostConfig `yaml:"hosts"`

	// Parsed durations (not from YAML, set after loading)
	DefaultTimeoutDuration time.Duration `yaml:"-"`
	RetryGraceDuration     time.Duration `yaml:"-"`
	PollIntervalDuration   time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		CaptureLines: 1000,
		MaxRetries:   3,
		RetryGrace:   "2s",
		Protocol:     "wrap",
		PollInterval: "1s",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	if cfg.Protocol != "wrap" && cfg.Protocol != "hook" {
		return nil, fmt.Errorf("invalid protocol %q: want wrap or hook", cfg.Protocol)
	}

	var err error
	cfg.DefaultTimeoutDuration, err = parseDurationOrDisable(cfg.DefaultTimeout, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid default timeout %q: %w", cfg.DefaultTimeout, err)
	}
	cfg.RetryGraceDuration, err = parseDurationOrDisable(cfg.RetryGrace, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid retry grace %q: %w", cfg.RetryGrace, err)
	}
	cfg.PollIntervalDuration, err = parseDurationOrDisable(cfg.PollInterval, time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid poll interval %q: %w", cfg.PollInterval, err)
	}

	if home, err := os.UserHomeDir(); err == nil {
		for name, h := range cfg.Hosts {
			if len(h.SSHKey) > 0 && h.SSHKey[0] == '~' {
				h.SSHKey = filepath.Join(home, h.SSHKey[1:])
				cfg.Hosts[name] = h
			}
		}
	}

	return cfg, nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".panerun.yaml"); err == nil {
		return ".panerun.yaml", data, nil
	}

	// 2. ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "panerun", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.CaptureLines > 0 {
		cfg.CaptureLines = file.CaptureLines
	}
	if file.DefaultTimeout != "" {
		cfg.DefaultTimeout = file.DefaultTimeout
	}
	if file.RetryGrace != "" {
		cfg.RetryGrace = file.RetryGrace
	}
	if file.MaxRetries > 0 {
		cfg.MaxRetries = file.MaxRetries
	}
	if file.Protocol != "" {
		cfg.Protocol = file.Protocol
	}
	if file.PollInterval != "" {
		cfg.PollInterval = file.PollInterval
	}
	if file.HistoryDB != "" {
		cfg.HistoryDB = file.HistoryDB
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
	if len(file.Hosts) > 0 {
		cfg.Hosts = file.Hosts
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("PANERUN_CAPTURE_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CaptureLines = n
		}
	}
	if v := os.Getenv("PANERUN_DEFAULT_TIMEOUT"); v != "" {
		cfg.DefaultTimeout = v
	}
	if v := os.Getenv("PANERUN_RETRY_GRACE"); v != "" {
		cfg.RetryGrace = v
	}
	if v := os.Getenv("PANERUN_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("PANERUN_PROTOCOL"); v != "" {
		cfg.Protocol = v
	}
	if v := os.Getenv("PANERUN_POLL_INTERVAL"); v != "" {
		cfg.PollInterval = v
	}
	if v := os.Getenv("PANERUN_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
