package config

import (
	"time"

	"trafficgate/saturn/pkg/telemetry/logging"
)

// Config is the root configuration for the Saturn RCP engine.
type Config struct {
	// Runner configures the tick loop.
	Runner RunnerConfig `yaml:"runner"`

	// Policy configures the policy directory source.
	Policy PolicyConfig `yaml:"policy"`

	// Limiter configures the rate-limit store.
	Limiter LimiterConfig `yaml:"limiter"`

	// Audit configures evaluation record storage and retention.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RunnerConfig configures the tick loop.
type RunnerConfig struct {
	// TickInterval is the pause between evaluation ticks per algorithm.
	// Default: 60s.
	TickInterval time.Duration `yaml:"tick_interval"`

	// TickBudget is the wall-clock budget for one tick.
	// Default: 10s.
	TickBudget time.Duration `yaml:"tick_budget"`

	// Fallback is "deny" or "bypass": what to do with a batch whose audit
	// write failed after retry. Default: "deny".
	Fallback string `yaml:"fallback"`

	// SpoolDir is where optimizers drop batch files, one subdirectory per
	// algorithm key. Default: "spool".
	SpoolDir string `yaml:"spool_dir"`

	// Algorithms names the algorithm keys to run. Empty means discover
	// from the spool directory's subdirectories.
	Algorithms []string `yaml:"algorithms"`

	// Executor is "outbox" or "log". Default: "outbox".
	Executor string `yaml:"executor"`

	// OutboxPath is the approved-action outbox file when Executor is
	// "outbox". Default: "data/outbox.jsonl".
	OutboxPath string `yaml:"outbox_path"`
}

// PolicyConfig configures the policy source.
type PolicyConfig struct {
	// Dir is the policy YAML directory.
	// Default: "policies".
	Dir string `yaml:"dir"`

	// Watch enables hot reload on file changes.
	// Default: true.
	Watch bool `yaml:"watch"`

	// ScheduleTolerance is the window around cron occurrences inside
	// which schedule-restricted policies apply. Default: 5m.
	ScheduleTolerance time.Duration `yaml:"schedule_tolerance"`
}

// LimiterConfig configures the rate-limit store.
type LimiterConfig struct {
	// Backend is "memory" or "sqlite". Multi-instance deployments need
	// "sqlite" (or another shared store) or each instance gets its own
	// budget. Default: "memory".
	Backend string `yaml:"backend"`

	// SQLitePath is the limiter database path when Backend is "sqlite".
	// Default: "data/limiter.db".
	SQLitePath string `yaml:"sqlite_path"`
}

// AuditConfig configures evaluation record storage.
type AuditConfig struct {
	// Backend is "memory" or "sqlite". Default: "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the audit database path when Backend is "sqlite".
	// Default: "data/audit.db".
	SQLitePath string `yaml:"sqlite_path"`

	// RetentionDays deletes records older than this many days. Zero
	// keeps everything. Default: 90.
	RetentionDays int `yaml:"retention_days"`

	// MaxRecords trims the store to at most this many rows. Zero keeps
	// everything. Default: 0.
	MaxRecords int `yaml:"max_records"`

	// PruneSchedule is the cron expression for automatic pruning.
	// Default: "0 3 * * *".
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging logging.Config `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the metrics listener on. Default: true.
	Enabled bool `yaml:"enabled"`

	// ListenAddress is the metrics listener address.
	// Default: "127.0.0.1:9464".
	ListenAddress string `yaml:"listen_address"`

	// Namespace prefixes every metric name. Default: "saturn".
	Namespace string `yaml:"namespace"`
}
