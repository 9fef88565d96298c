package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Defaults are applied and the result is validated. Environment variables
// are not consulted; use Load for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Load loads configuration from a YAML file and applies environment
// variable overrides. An empty path starts from the defaults.
//
// The loading sequence is:
//  1. Load YAML from file (or defaults when no path is given)
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func Load(path string) (*Config, error) {
	var cfg *Config

	if path == "" {
		cfg = DefaultConfig()
	} else {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
// Variables use the format GIGAFORMAT_SECTION_FIELD; the credentials also
// accept the bare GIGACHAT_CLIENT_ID and GIGACHAT_CLIENT_SECRET names.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GIGAFORMAT_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GIGAFORMAT_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GIGAFORMAT_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// GigaChat overrides. Credentials never belong in the config file.
	if val := os.Getenv("GIGACHAT_CLIENT_ID"); val != "" {
		cfg.GigaChat.ClientID = val
	}
	if val := os.Getenv("GIGACHAT_CLIENT_SECRET"); val != "" {
		cfg.GigaChat.ClientSecret = val
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_CLIENT_ID"); val != "" {
		cfg.GigaChat.ClientID = val
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_CLIENT_SECRET"); val != "" {
		cfg.GigaChat.ClientSecret = val
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_AUTH_URL"); val != "" {
		cfg.GigaChat.AuthURL = val
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_BASE_URL"); val != "" {
		cfg.GigaChat.BaseURL = val
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_MODEL"); val != "" {
		cfg.GigaChat.Model = val
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.GigaChat.Timeout = d
		}
	}
	if val := os.Getenv("GIGAFORMAT_GIGACHAT_INSECURE_SKIP_VERIFY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.GigaChat.InsecureSkipVerify = b
		}
	}

	// Quota overrides
	if val := os.Getenv("GIGAFORMAT_QUOTA_REQUEST_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Quota.Limits.Request = i
		}
	}
	if val := os.Getenv("GIGAFORMAT_QUOTA_DAILY_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Quota.Limits.Daily = i
		}
	}
	if val := os.Getenv("GIGAFORMAT_QUOTA_MONTHLY_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Quota.Limits.Monthly = i
		}
	}
	if val := os.Getenv("GIGAFORMAT_QUOTA_STORE_PATH"); val != "" {
		cfg.Quota.StorePath = val
	}

	// Journal overrides
	if val := os.Getenv("GIGAFORMAT_JOURNAL_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Journal.Enabled = &b
		}
	}
	if val := os.Getenv("GIGAFORMAT_JOURNAL_PATH"); val != "" {
		cfg.Journal.Path = val
	}

	// Telemetry overrides
	if val := os.Getenv("GIGAFORMAT_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GIGAFORMAT_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GIGAFORMAT_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
}
