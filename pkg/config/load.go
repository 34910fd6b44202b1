package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration file %q: %w", path, err)
	}

	cfg := &Config{}
	cfg.Policy.Watch = true
	cfg.Telemetry.Metrics.Enabled = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies SATURN_SECTION_FIELD environment overrides on top, re-validating
// the final result.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SATURN_RUNNER_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Runner.TickInterval = d
		}
	}
	if v := os.Getenv("SATURN_RUNNER_TICK_BUDGET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Runner.TickBudget = d
		}
	}
	if v := os.Getenv("SATURN_RUNNER_FALLBACK"); v != "" {
		cfg.Runner.Fallback = v
	}
	if v := os.Getenv("SATURN_RUNNER_SPOOL_DIR"); v != "" {
		cfg.Runner.SpoolDir = v
	}

	if v := os.Getenv("SATURN_POLICY_DIR"); v != "" {
		cfg.Policy.Dir = v
	}
	if v := os.Getenv("SATURN_POLICY_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Policy.Watch = b
		}
	}

	if v := os.Getenv("SATURN_LIMITER_BACKEND"); v != "" {
		cfg.Limiter.Backend = v
	}
	if v := os.Getenv("SATURN_LIMITER_SQLITE_PATH"); v != "" {
		cfg.Limiter.SQLitePath = v
	}

	if v := os.Getenv("SATURN_AUDIT_BACKEND"); v != "" {
		cfg.Audit.Backend = v
	}
	if v := os.Getenv("SATURN_AUDIT_SQLITE_PATH"); v != "" {
		cfg.Audit.SQLitePath = v
	}
	if v := os.Getenv("SATURN_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audit.RetentionDays = n
		}
	}

	if v := os.Getenv("SATURN_LOGGING_LEVEL"); v != "" {
		cfg.Telemetry.Logging.Level = v
	}
	if v := os.Getenv("SATURN_LOGGING_FORMAT"); v != "" {
		cfg.Telemetry.Logging.Format = v
	}
	if v := os.Getenv("SATURN_METRICS_LISTEN_ADDRESS"); v != "" {
		cfg.Telemetry.Metrics.ListenAddress = v
	}
}
