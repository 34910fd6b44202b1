package config

import "time"

// ApplyDefaults fills zero-valued fields with their defaults. Booleans
// that default to true are handled in Default(), which callers should use
// as the base before unmarshalling.
func ApplyDefaults(cfg *Config) {
	if cfg.Runner.TickInterval == 0 {
		cfg.Runner.TickInterval = 60 * time.Second
	}
	if cfg.Runner.TickBudget == 0 {
		cfg.Runner.TickBudget = 10 * time.Second
	}
	if cfg.Runner.Fallback == "" {
		cfg.Runner.Fallback = "deny"
	}
	if cfg.Runner.SpoolDir == "" {
		cfg.Runner.SpoolDir = "spool"
	}
	if cfg.Runner.Executor == "" {
		cfg.Runner.Executor = "outbox"
	}
	if cfg.Runner.OutboxPath == "" {
		cfg.Runner.OutboxPath = "data/outbox.jsonl"
	}

	if cfg.Policy.Dir == "" {
		cfg.Policy.Dir = "policies"
	}
	if cfg.Policy.ScheduleTolerance == 0 {
		cfg.Policy.ScheduleTolerance = 5 * time.Minute
	}

	if cfg.Limiter.Backend == "" {
		cfg.Limiter.Backend = "memory"
	}
	if cfg.Limiter.SQLitePath == "" {
		cfg.Limiter.SQLitePath = "data/limiter.db"
	}

	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = "sqlite"
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = "data/audit.db"
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.Audit.PruneSchedule == "" {
		cfg.Audit.PruneSchedule = "0 3 * * *"
	}

	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = "127.0.0.1:9464"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "saturn"
	}
}

// Default returns the configuration used when no file is given: defaults
// applied over a zero config, with the default-true booleans set.
func Default() *Config {
	cfg := &Config{}
	cfg.Policy.Watch = true
	cfg.Telemetry.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
