package config

import (
	"fmt"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	// Field is the dotted configuration path (e.g., "quota.limits.daily")
	Field string

	// Message describes what is wrong
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects all validation failures for one pass.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation error(s): %s", len(e), strings.Join(msgs, "; "))
}

// Validate checks the configuration for consistency.
// All problems are collected and returned together.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	add := func(field, message string) {
		errs = append(errs, &ValidationError{Field: field, Message: message})
	}

	// Server
	if cfg.Server.ListenAddress == "" {
		add("server.listen_address", "cannot be empty")
	}
	if cfg.Server.ReadTimeout < 0 {
		add("server.read_timeout", "cannot be negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		add("server.write_timeout", "cannot be negative")
	}
	if cfg.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes", "cannot be negative")
	}

	// GigaChat. Credentials are checked at client construction so that
	// offline commands (validate, quota) work without them.
	if cfg.GigaChat.AuthURL == "" {
		add("gigachat.auth_url", "cannot be empty")
	}
	if cfg.GigaChat.BaseURL == "" {
		add("gigachat.base_url", "cannot be empty")
	}
	if cfg.GigaChat.MaxRetries < 0 {
		add("gigachat.max_retries", "cannot be negative")
	}
	if cfg.GigaChat.Timeout < 0 {
		add("gigachat.timeout", "cannot be negative")
	}

	// Quota
	limits := cfg.Quota.Limits
	if limits.Request < 0 {
		add("quota.limits.request", "cannot be negative")
	}
	if limits.Daily < 0 {
		add("quota.limits.daily", "cannot be negative")
	}
	if limits.Monthly < 0 {
		add("quota.limits.monthly", "cannot be negative")
	}
	if limits.Request > 0 && limits.Daily > 0 && limits.Request > limits.Daily {
		add("quota.limits.request", "cannot exceed the daily budget")
	}
	if limits.Daily > 0 && limits.Monthly > 0 && limits.Daily > limits.Monthly {
		add("quota.limits.daily", "cannot exceed the monthly budget")
	}
	if limits.WarnThreshold < 0 || limits.WarnThreshold > 1 {
		add("quota.limits.warn_threshold", "must be between 0.0 and 1.0")
	}
	if limits.CriticalThreshold < 0 || limits.CriticalThreshold > 1 {
		add("quota.limits.critical_threshold", "must be between 0.0 and 1.0")
	}
	if limits.WarnThreshold > 0 && limits.CriticalThreshold > 0 &&
		limits.WarnThreshold > limits.CriticalThreshold {
		add("quota.limits.warn_threshold", "cannot exceed the critical threshold")
	}

	// Journal
	if cfg.Journal.MaxEntries < 0 {
		add("journal.max_entries", "cannot be negative")
	}

	// Formatter
	if cfg.Formatter.Temperature < 0 || cfg.Formatter.Temperature > 2 {
		add("formatter.temperature", "must be between 0.0 and 2.0")
	}
	if cfg.Formatter.MaxTokens < 0 {
		add("formatter.max_tokens", "cannot be negative")
	}
	if cfg.Formatter.MaxTokens > 0 && limits.Request > 0 &&
		cfg.Formatter.MaxTokens > limits.Request {
		add("formatter.max_tokens", "cannot exceed the per-request token limit")
	}
	for model, ratio := range cfg.Formatter.CharsPerToken {
		if ratio <= 0 {
			add("formatter.chars_per_token."+model, "must be positive")
		}
	}

	// Telemetry
	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("telemetry.logging.level", "must be one of: debug, info, warn, error")
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		add("telemetry.logging.format", "must be json or text")
	}
	if cfg.MetricsEnabled() && !strings.HasPrefix(cfg.Telemetry.Metrics.Path, "/") {
		add("telemetry.metrics.path", "must start with /")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
