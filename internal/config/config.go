// Package config loads and validates scan configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/crawler"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Scan     ScanConfig     `mapstructure:"scan"`
	Viewport ViewportConfig `mapstructure:"viewport"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Output   OutputConfig   `mapstructure:"output"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
}

// ScanConfig governs the scheduler and page loads.
type ScanConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout"`
	SettleDelay   time.Duration `mapstructure:"settle_delay"`
	// IframeBlocklist replaces the built-in iframe block list when non-empty.
	IframeBlocklist []string `mapstructure:"iframe_blocklist"`
}

// ViewportConfig sets the emulated device sizes.
type ViewportConfig struct {
	MobileWidth   int `mapstructure:"mobile_width"`
	MobileHeight  int `mapstructure:"mobile_height"`
	DesktopWidth  int `mapstructure:"desktop_width"`
	DesktopHeight int `mapstructure:"desktop_height"`
}

// BrowserConfig configures the Chrome process launched per scan.
type BrowserConfig struct {
	ExecPath  string `mapstructure:"exec_path"`
	UserAgent string `mapstructure:"user_agent"`
	NoSandbox bool   `mapstructure:"no_sandbox"`
	// UnmutedAutoplay relaxes Chrome's autoplay policy for videos with sound.
	UnmutedAutoplay bool `mapstructure:"unmuted_autoplay"`
}

// ProbeConfig configures ffprobe.
type ProbeConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
	Workers int           `mapstructure:"workers"`
}

// MetricsConfig configures the SpeedyU client. APIURL and APIKey override the
// secrets file.
type MetricsConfig struct {
	SecretsFile   string        `mapstructure:"secrets_file"`
	APIURL        string        `mapstructure:"api_url"`
	APIKey        string        `mapstructure:"api_key"`
	SiteBaseURL   string        `mapstructure:"site_base_url"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Country       string        `mapstructure:"country"`
}

// OutputConfig places the result files.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	CSV         string `mapstructure:"csv"`
	Diagnostics string `mapstructure:"diagnostics"`
}

// StorageConfig selects where screenshots go.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	Screenshots bool   `mapstructure:"screenshots"`
	Prefix      string `mapstructure:"prefix"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	GCSPrefix   string `mapstructure:"gcs_prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ServerConfig controls the optional status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VIDEOSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.max_concurrent", 10)
	v.SetDefault("scan.nav_timeout", 60*time.Second)
	v.SetDefault("scan.settle_delay", 2*time.Second)
	v.SetDefault("scan.iframe_blocklist", []string{})
	v.SetDefault("viewport.mobile_width", crawler.MobileViewport.Width)
	v.SetDefault("viewport.mobile_height", crawler.MobileViewport.Height)
	v.SetDefault("viewport.desktop_width", crawler.DesktopViewport.Width)
	v.SetDefault("viewport.desktop_height", crawler.DesktopViewport.Height)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.unmuted_autoplay", false)
	v.SetDefault("probe.binary", "ffprobe")
	v.SetDefault("probe.timeout", 30*time.Second)
	v.SetDefault("probe.workers", 4)
	v.SetDefault("metrics.secrets_file", "secrets")
	v.SetDefault("metrics.api_url", "")
	v.SetDefault("metrics.api_key", "")
	v.SetDefault("metrics.site_base_url", "https://speedyu.bravery.co/site/")
	v.SetDefault("metrics.rate_per_second", 5)
	v.SetDefault("metrics.burst", 1)
	v.SetDefault("metrics.timeout", 15*time.Second)
	v.SetDefault("metrics.max_attempts", 3)
	v.SetDefault("metrics.retry_delay", 500*time.Millisecond)
	v.SetDefault("metrics.country", "")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.csv", "scan_results.csv")
	v.SetDefault("output.diagnostics", "error.log")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.screenshots", true)
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("storage.local_dir", ".")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.gcs_prefix", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Scan.MaxConcurrent <= 0 {
		return fmt.Errorf("scan.max_concurrent must be > 0")
	}
	if c.Scan.NavTimeout <= 0 {
		return fmt.Errorf("scan.nav_timeout must be > 0")
	}
	if c.Scan.SettleDelay < 0 {
		return fmt.Errorf("scan.settle_delay must be >= 0")
	}
	if c.Viewport.MobileWidth <= 0 || c.Viewport.MobileHeight <= 0 {
		return fmt.Errorf("viewport.mobile_width and viewport.mobile_height must be > 0")
	}
	if c.Viewport.DesktopWidth <= 0 || c.Viewport.DesktopHeight <= 0 {
		return fmt.Errorf("viewport.desktop_width and viewport.desktop_height must be > 0")
	}
	if c.Probe.Workers <= 0 {
		return fmt.Errorf("probe.workers must be > 0")
	}
	if c.Metrics.RatePerSecond < 0 {
		return fmt.Errorf("metrics.rate_per_second must be >= 0")
	}
	if strings.TrimSpace(c.Output.CSV) == "" {
		return fmt.Errorf("output.csv must be set")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "none", "local", "memory":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, local, gcs, memory", c.Storage.Backend)
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// MobileViewport returns the configured mobile viewport.
func (c Config) MobileViewport() crawler.Viewport {
	vp := crawler.MobileViewport
	vp.Width, vp.Height = c.Viewport.MobileWidth, c.Viewport.MobileHeight
	return vp
}

// DesktopViewport returns the configured desktop viewport.
func (c Config) DesktopViewport() crawler.Viewport {
	vp := crawler.DesktopViewport
	vp.Width, vp.Height = c.Viewport.DesktopWidth, c.Viewport.DesktopHeight
	return vp
}

// CSVPath is where the record file is written.
func (c Config) CSVPath() string {
	return joinOutput(c.Output.Dir, c.Output.CSV)
}

// DiagnosticsPath is where Warn+ log lines are appended; empty disables it.
func (c Config) DiagnosticsPath() string {
	if strings.TrimSpace(c.Output.Diagnostics) == "" {
		return ""
	}
	return joinOutput(c.Output.Dir, c.Output.Diagnostics)
}

func joinOutput(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
