package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for values that would fail at
// startup or misbehave silently at runtime.
func Validate(cfg *Config) error {
	if cfg.Runner.TickInterval <= 0 {
		return fmt.Errorf("runner.tick_interval must be positive")
	}
	if cfg.Runner.TickBudget <= 0 {
		return fmt.Errorf("runner.tick_budget must be positive")
	}
	switch cfg.Runner.Fallback {
	case "deny", "bypass":
	default:
		return fmt.Errorf("runner.fallback must be deny or bypass, got %q", cfg.Runner.Fallback)
	}
	if cfg.Runner.SpoolDir == "" {
		return fmt.Errorf("runner.spool_dir is required")
	}
	switch cfg.Runner.Executor {
	case "outbox":
		if cfg.Runner.OutboxPath == "" {
			return fmt.Errorf("runner.outbox_path is required for the outbox executor")
		}
	case "log":
	default:
		return fmt.Errorf("runner.executor must be outbox or log, got %q", cfg.Runner.Executor)
	}

	if cfg.Policy.Dir == "" {
		return fmt.Errorf("policy.dir is required")
	}
	if cfg.Policy.ScheduleTolerance < 0 {
		return fmt.Errorf("policy.schedule_tolerance must be non-negative")
	}

	switch cfg.Limiter.Backend {
	case "memory":
	case "sqlite":
		if cfg.Limiter.SQLitePath == "" {
			return fmt.Errorf("limiter.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("limiter.backend must be memory or sqlite, got %q", cfg.Limiter.Backend)
	}

	switch cfg.Audit.Backend {
	case "memory":
	case "sqlite":
		if cfg.Audit.SQLitePath == "" {
			return fmt.Errorf("audit.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("audit.backend must be memory or sqlite, got %q", cfg.Audit.Backend)
	}
	if cfg.Audit.RetentionDays < 0 || cfg.Audit.MaxRecords < 0 {
		return fmt.Errorf("audit retention values must be non-negative")
	}
	if cfg.Audit.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.PruneSchedule); err != nil {
			return fmt.Errorf("audit.prune_schedule: %w", err)
		}
	}

	if cfg.Telemetry.Metrics.Enabled && cfg.Telemetry.Metrics.ListenAddress == "" {
		return fmt.Errorf("telemetry.metrics.listen_address is required when metrics are enabled")
	}
	return nil
}
