package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ============================================================================
// Test Helpers
// ============================================================================

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

const minimalConfig = `
server:
  listen_address: ":9090"
quota:
  limits:
    daily: 5000
`

// ============================================================================
// Defaults Tests
// ============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddress != ":8080" {
		t.Errorf("Expected default listen address :8080, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Quota.Limits.Request != 2000 {
		t.Errorf("Expected default request limit 2000, got %d", cfg.Quota.Limits.Request)
	}
	if cfg.Quota.Limits.Daily != 10000 {
		t.Errorf("Expected default daily limit 10000, got %d", cfg.Quota.Limits.Daily)
	}
	if cfg.Quota.Limits.Monthly != 100000 {
		t.Errorf("Expected default monthly limit 100000, got %d", cfg.Quota.Limits.Monthly)
	}
	if cfg.GigaChat.Model != "GigaChat:latest" {
		t.Errorf("Expected default model, got %s", cfg.GigaChat.Model)
	}
	if !cfg.JournalEnabled() {
		t.Error("Expected journaling enabled by default")
	}
	if !cfg.MetricsEnabled() {
		t.Error("Expected metrics enabled by default")
	}
	if !cfg.RedactPII() {
		t.Error("Expected PII redaction enabled by default")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config must validate, got %v", err)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ListenAddress = ":7000"
	cfg.Quota.Limits.Daily = 500

	ApplyDefaults(cfg)

	if cfg.Server.ListenAddress != ":7000" {
		t.Errorf("Explicit listen address overwritten: %s", cfg.Server.ListenAddress)
	}
	if cfg.Quota.Limits.Daily != 500 {
		t.Errorf("Explicit daily limit overwritten: %d", cfg.Quota.Limits.Daily)
	}
	// Untouched fields still get defaults.
	if cfg.Quota.Limits.Monthly != 100000 {
		t.Errorf("Expected default monthly limit, got %d", cfg.Quota.Limits.Monthly)
	}
}

// ============================================================================
// Loading Tests
// ============================================================================

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddress != ":9090" {
		t.Errorf("Expected listen address from file, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Quota.Limits.Daily != 5000 {
		t.Errorf("Expected daily limit from file, got %d", cfg.Quota.Limits.Daily)
	}
	// Unspecified fields fall back to defaults.
	if cfg.Quota.Limits.Monthly != 100000 {
		t.Errorf("Expected default monthly limit, got %d", cfg.Quota.Limits.Monthly)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not: valid")
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := writeConfigFile(t, `
quota:
  limits:
    daily: -5
`)
	_, err := LoadConfig(path)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.ListenAddress != ":8080" {
		t.Errorf("Expected defaults without a file, got %s", cfg.Server.ListenAddress)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GIGAFORMAT_SERVER_LISTEN_ADDRESS", ":7777")
	t.Setenv("GIGACHAT_CLIENT_ID", "env-client")
	t.Setenv("GIGACHAT_CLIENT_SECRET", "env-secret")
	t.Setenv("GIGAFORMAT_QUOTA_DAILY_LIMIT", "4000")
	t.Setenv("GIGAFORMAT_GIGACHAT_TIMEOUT", "90s")

	path := writeConfigFile(t, minimalConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.ListenAddress != ":7777" {
		t.Errorf("Expected env override for listen address, got %s", cfg.Server.ListenAddress)
	}
	if cfg.GigaChat.ClientID != "env-client" || cfg.GigaChat.ClientSecret != "env-secret" {
		t.Error("Expected credentials from environment")
	}
	if cfg.Quota.Limits.Daily != 4000 {
		t.Errorf("Expected env override for daily limit, got %d", cfg.Quota.Limits.Daily)
	}
	if cfg.GigaChat.Timeout != 90*time.Second {
		t.Errorf("Expected env override for timeout, got %s", cfg.GigaChat.Timeout)
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ListenAddress = ""
	cfg.Quota.Limits.Daily = -1
	cfg.Telemetry.Logging.Level = "loud"

	err := Validate(cfg)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Expected ValidationErrors, got %v", err)
	}
	if len(verrs) != 3 {
		t.Errorf("Expected 3 errors, got %d: %v", len(verrs), verrs)
	}
}

func TestValidate_LimitOrdering(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"request above daily",
			func(c *Config) { c.Quota.Limits.Request = 20000 },
			"quota.limits.request",
		},
		{
			"daily above monthly",
			func(c *Config) { c.Quota.Limits.Daily = 200000 },
			"quota.limits.daily",
		},
		{
			"warn above critical",
			func(c *Config) { c.Quota.Limits.WarnThreshold = 0.95 },
			"quota.limits.warn_threshold",
		},
		{
			"max_tokens above request limit",
			func(c *Config) { c.Formatter.MaxTokens = 3000 },
			"formatter.max_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ZeroLimitsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quota.Limits.Request = 0
	cfg.Quota.Limits.Daily = 0
	cfg.Quota.Limits.Monthly = 0

	// ApplyDefaults was already run; zeroes set afterwards mean unlimited
	// and must pass validation.
	if err := Validate(cfg); err != nil {
		t.Errorf("Zero limits must validate as unlimited, got %v", err)
	}
}
