package config

import (
	"time"

	"avtolenta/gigaformat/pkg/formatter"
	"avtolenta/gigaformat/pkg/gigachat"
	"avtolenta/gigaformat/pkg/quota"
)

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields with their defaults.
// Explicitly configured values are left alone.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 64 * 1024
	}

	// GigaChat defaults
	if cfg.GigaChat.AuthURL == "" {
		cfg.GigaChat.AuthURL = gigachat.DefaultAuthURL
	}
	if cfg.GigaChat.BaseURL == "" {
		cfg.GigaChat.BaseURL = gigachat.DefaultBaseURL
	}
	if cfg.GigaChat.OAuthScope == "" {
		cfg.GigaChat.OAuthScope = gigachat.DefaultOAuthScope
	}
	if cfg.GigaChat.Model == "" {
		cfg.GigaChat.Model = gigachat.DefaultModel
	}
	if cfg.GigaChat.Timeout == 0 {
		cfg.GigaChat.Timeout = 60 * time.Second
	}
	if cfg.GigaChat.MaxRetries == 0 {
		cfg.GigaChat.MaxRetries = 3
	}
	if cfg.GigaChat.RetryBackoff == 0 {
		cfg.GigaChat.RetryBackoff = time.Second
	}
	if cfg.GigaChat.TokenRefreshMargin == 0 {
		cfg.GigaChat.TokenRefreshMargin = time.Minute
	}

	// Quota defaults
	defaults := quota.DefaultLimits()
	if cfg.Quota.Limits.Request == 0 {
		cfg.Quota.Limits.Request = defaults.Request
	}
	if cfg.Quota.Limits.Daily == 0 {
		cfg.Quota.Limits.Daily = defaults.Daily
	}
	if cfg.Quota.Limits.Monthly == 0 {
		cfg.Quota.Limits.Monthly = defaults.Monthly
	}
	if cfg.Quota.Limits.WarnThreshold == 0 {
		cfg.Quota.Limits.WarnThreshold = defaults.WarnThreshold
	}
	if cfg.Quota.Limits.CriticalThreshold == 0 {
		cfg.Quota.Limits.CriticalThreshold = defaults.CriticalThreshold
	}
	if cfg.Quota.StorePath == "" {
		cfg.Quota.StorePath = "data/quota.db"
	}
	if cfg.Quota.RolloverSchedule == "" {
		cfg.Quota.RolloverSchedule = quota.DefaultRolloverSchedule
	}

	// Journal defaults
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = "data/usage.db"
	}
	if cfg.Journal.MaxEntries == 0 {
		cfg.Journal.MaxEntries = 1000
	}

	// Formatter defaults
	if cfg.Formatter.Temperature == 0 {
		cfg.Formatter.Temperature = 0.7
	}
	if cfg.Formatter.MaxTokens == 0 {
		cfg.Formatter.MaxTokens = 2000
	}
	if cfg.Formatter.CharsPerToken == nil {
		cfg.Formatter.CharsPerToken = map[string]float64{
			"default": formatter.DefaultCharsPerToken,
		}
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
}
