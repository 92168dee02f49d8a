package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scan.MaxConcurrent != 10 {
		t.Fatalf("expected 10 slots, got %d", cfg.Scan.MaxConcurrent)
	}
	if cfg.Scan.NavTimeout != 60*time.Second || cfg.Scan.SettleDelay != 2*time.Second {
		t.Fatalf("unexpected page timings: %+v", cfg.Scan)
	}
	if vp := cfg.MobileViewport(); vp.Width != 390 || vp.Height != 800 || !vp.Mobile {
		t.Fatalf("unexpected mobile viewport: %+v", vp)
	}
	if vp := cfg.DesktopViewport(); vp.Width != 1440 || vp.Height != 900 || vp.Mobile {
		t.Fatalf("unexpected desktop viewport: %+v", vp)
	}
	if got := cfg.CSVPath(); got != filepath.Join("output", "scan_results.csv") {
		t.Fatalf("unexpected csv path %q", got)
	}
	if got := cfg.DiagnosticsPath(); got != filepath.Join("output", "error.log") {
		t.Fatalf("unexpected diagnostics path %q", got)
	}
	if cfg.Storage.Backend != "local" || !cfg.Storage.Screenshots {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
scan:
  max_concurrent: 4
  nav_timeout: 30s
  settle_delay: 500ms
  iframe_blocklist: ["ads.example.com"]
viewport:
  mobile_width: 375
probe:
  binary: /usr/local/bin/ffprobe
  workers: 2
metrics:
  country: CA
  rate_per_second: 2
output:
  dir: results
  csv: /tmp/out.csv
  diagnostics: ""
storage:
  backend: gcs
  gcs_bucket: hero-shots
  gcs_prefix: runs
server:
  enabled: true
  port: 9090
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scan.MaxConcurrent != 4 || cfg.Scan.NavTimeout != 30*time.Second || cfg.Scan.SettleDelay != 500*time.Millisecond {
		t.Fatalf("expected scan overrides to apply: %+v", cfg.Scan)
	}
	if len(cfg.Scan.IframeBlocklist) != 1 || cfg.Scan.IframeBlocklist[0] != "ads.example.com" {
		t.Fatalf("expected blocklist override: %v", cfg.Scan.IframeBlocklist)
	}
	if vp := cfg.MobileViewport(); vp.Width != 375 || vp.Height != 800 {
		t.Fatalf("expected partial viewport override: %+v", vp)
	}
	if cfg.Probe.Binary != "/usr/local/bin/ffprobe" || cfg.Probe.Workers != 2 {
		t.Fatalf("expected probe overrides: %+v", cfg.Probe)
	}
	if cfg.Metrics.Country != "CA" || cfg.Metrics.RatePerSecond != 2 {
		t.Fatalf("expected metrics overrides: %+v", cfg.Metrics)
	}
	if got := cfg.CSVPath(); got != "/tmp/out.csv" {
		t.Fatalf("absolute csv path should win over output.dir, got %q", got)
	}
	if got := cfg.DiagnosticsPath(); got != "" {
		t.Fatalf("expected diagnostics disabled, got %q", got)
	}
	if cfg.Storage.GCSBucket != "hero-shots" || cfg.Storage.GCSPrefix != "runs" {
		t.Fatalf("expected gcs overrides: %+v", cfg.Storage)
	}
	if !cfg.Server.Enabled || cfg.Server.Port != 9090 {
		t.Fatalf("expected server overrides: %+v", cfg.Server)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no slots", func(c *Config) { c.Scan.MaxConcurrent = 0 }, "scan.max_concurrent"},
		{"no nav timeout", func(c *Config) { c.Scan.NavTimeout = 0 }, "scan.nav_timeout"},
		{"negative settle", func(c *Config) { c.Scan.SettleDelay = -time.Second }, "scan.settle_delay"},
		{"mobile viewport", func(c *Config) { c.Viewport.MobileHeight = 0 }, "viewport.mobile"},
		{"desktop viewport", func(c *Config) { c.Viewport.DesktopWidth = -1 }, "viewport.desktop"},
		{"probe workers", func(c *Config) { c.Probe.Workers = 0 }, "probe.workers"},
		{"metrics rate", func(c *Config) { c.Metrics.RatePerSecond = -1 }, "metrics.rate_per_second"},
		{"csv name", func(c *Config) { c.Output.CSV = " " }, "output.csv"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "storage.backend"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.gcs_bucket"},
		{"server port", func(c *Config) { c.Server.Enabled = true; c.Server.Port = 0 }, "server.port"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
