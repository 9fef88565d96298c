package config

import (
	"time"

	"avtolenta/gigaformat/pkg/gigachat"
	"avtolenta/gigaformat/pkg/quota"
)

// Config is the root configuration for the gigaformat service.
type Config struct {
	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// GigaChat configures the upstream API client.
	GigaChat gigachat.Config `yaml:"gigachat"`

	// Quota configures token limits and persistence.
	Quota QuotaConfig `yaml:"quota"`

	// Journal configures usage history persistence.
	Journal JournalConfig `yaml:"journal"`

	// Formatter configures the formatting pipeline.
	Formatter FormatterConfig `yaml:"formatter"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// ListenAddress is the address the HTTP server binds to.
	// Default: ":8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// GigaChat calls run long, so this must cover the upstream timeout.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps the request body size.
	// Default: 65536
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// QuotaConfig contains token quota settings.
type QuotaConfig struct {
	// Limits are the per-request, daily, and monthly token limits.
	Limits quota.Limits `yaml:"limits"`

	// StorePath is the SQLite file persisting quota counters.
	// Empty keeps counters in memory only.
	// Default: "data/quota.db"
	StorePath string `yaml:"store_path"`

	// RolloverSchedule is the cron expression for the eager window
	// rollover. Empty uses the built-in just-after-midnight schedule.
	RolloverSchedule string `yaml:"rollover_schedule"`
}

// JournalConfig contains usage history settings.
type JournalConfig struct {
	// Enabled turns usage journaling on.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the SQLite file storing usage events. Empty with journaling
	// enabled keeps history in memory only.
	// Default: "data/usage.db"
	Path string `yaml:"path"`

	// MaxEntries bounds the retained history.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`
}

// FormatterConfig contains formatting pipeline settings.
type FormatterConfig struct {
	// Temperature is the sampling temperature for completions.
	// Default: 0.7
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion length.
	// Default: 2000
	MaxTokens int `yaml:"max_tokens"`

	// CharsPerToken maps model names to characters-per-token estimation
	// ratios. The "default" key is the fallback ratio.
	CharsPerToken map[string]float64 `yaml:"chars_per_token"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: json or text.
	// Default: "json"
	Format string `yaml:"format"`

	// RedactPII masks phone numbers and VIN codes in logged text.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// JournalEnabled reports whether usage journaling is on.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}

// MetricsEnabled reports whether the metrics endpoint is exposed.
func (c *Config) MetricsEnabled() bool {
	return c.Telemetry.Metrics.Enabled == nil || *c.Telemetry.Metrics.Enabled
}

// RedactPII reports whether log redaction is on.
func (c *Config) RedactPII() bool {
	return c.Telemetry.Logging.RedactPII == nil || *c.Telemetry.Logging.RedactPII
}
