package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PANERUN_CAPTURE_LINES", "PANERUN_DEFAULT_TIMEOUT", "PANERUN_RETRY_GRACE",
		"PANERUN_MAX_RETRIES", "PANERUN_PROTOCOL", "PANERUN_POLL_INTERVAL",
		"PANERUN_HISTORY_DB", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.CaptureLines != 1000 {
		t.Errorf("CaptureLines: got %d, want %d", cfg.CaptureLines, 1000)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries: got %d, want %d", cfg.MaxRetries, 3)
	}
	if cfg.RetryGrace != "2s" {
		t.Errorf("RetryGrace: got %q, want %q", cfg.RetryGrace, "2s")
	}
	if cfg.Protocol != "wrap" {
		t.Errorf("Protocol: got %q, want %q", cfg.Protocol, "wrap")
	}
	if cfg.PollInterval != "1s" {
		t.Errorf("PollInterval: got %q, want %q", cfg.PollInterval, "1s")
	}
}

func TestParseDurationOrDisable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMs  int64
		wantErr bool
	}{
		{"empty returns fallback", "", 5000, false},
		{"zero disables", "0", 0, false},
		{"off disables", "off", 0, false},
		{"disable disables", "disable", 0, false},
		{"valid duration", "30s", 30000, false},
		{"valid short duration", "500ms", 500, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDurationOrDisable(tt.input, 5*time.Second)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDurationOrDisable(%q): error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Milliseconds() != tt.wantMs {
				t.Errorf("parseDurationOrDisable(%q) = %v, want %dms", tt.input, got, tt.wantMs)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".panerun.yaml")
	content := `capture_lines: 500
default_timeout: "5m"
retry_grace: "1s"
max_retries: 5
protocol: hook
history_db: /tmp/test-history.db
hosts:
  build:
    host: build.example.com
    user: ci
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.CaptureLines != 500 {
		t.Errorf("CaptureLines: got %d, want %d", cfg.CaptureLines, 500)
	}
	if cfg.DefaultTimeoutDuration != 5*time.Minute {
		t.Errorf("DefaultTimeoutDuration: got %v, want 5m", cfg.DefaultTimeoutDuration)
	}
	if cfg.RetryGraceDuration != time.Second {
		t.Errorf("RetryGraceDuration: got %v, want 1s", cfg.RetryGraceDuration)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries: got %d, want %d", cfg.MaxRetries, 5)
	}
	if cfg.Protocol != "hook" {
		t.Errorf("Protocol: got %q, want %q", cfg.Protocol, "hook")
	}
	if cfg.HistoryDB != "/tmp/test-history.db" {
		t.Errorf("HistoryDB: got %q", cfg.HistoryDB)
	}
	if h, ok := cfg.Hosts["build"]; !ok || h.Host != "build.example.com" || h.User != "ci" {
		t.Errorf("Hosts[build]: got %+v", cfg.Hosts["build"])
	}
	if cfg.ConfigFile != ".panerun.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".panerun.yaml")
	content := `capture_lines: 500
protocol: wrap
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	clearEnv(t)

	t.Setenv("PANERUN_CAPTURE_LINES", "2000")
	t.Setenv("PANERUN_PROTOCOL", "hook")
	t.Setenv("PANERUN_DEFAULT_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.CaptureLines != 2000 {
		t.Errorf("CaptureLines: got %d, want %d (env should override file)", cfg.CaptureLines, 2000)
	}
	if cfg.Protocol != "hook" {
		t.Errorf("Protocol: got %q, want %q (env should override file)", cfg.Protocol, "hook")
	}
	if cfg.DefaultTimeoutDuration != 30*time.Second {
		t.Errorf("DefaultTimeoutDuration: got %v, want 30s", cfg.DefaultTimeoutDuration)
	}
}

func TestLoadRejectsBadProtocol(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	clearEnv(t)

	t.Setenv("PANERUN_PROTOCOL", "telepathy")
	if _, err := Load(); err == nil {
		t.Error("unknown protocol must be rejected")
	}
}

func TestLoadExpandsSSHKey(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".panerun.yaml")
	content := `hosts:
  build:
    host: build.example.com
    ssh_key: "~/.ssh/build_ed25519"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)
	os.Chdir(dir)
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	want := filepath.Join(home, ".ssh", "build_ed25519")
	if got := cfg.Hosts["build"].SSHKey; got != want {
		t.Errorf("SSHKey: got %q, want %q", got, want)
	}
}
