package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"trafficgate/saturn/pkg/rcp"
	"trafficgate/saturn/pkg/rcp/evaluator"
	"trafficgate/saturn/pkg/telemetry/metrics"
)

// Algorithm is a traffic-optimization algorithm the runner drives. Each
// tick the runner asks it for candidate actions and the live context they
// should be judged in.
type Algorithm interface {
	// Key is the stable algorithm identifier (the actions' algo key).
	Key() string

	// Propose returns the tick's candidate actions and context inputs.
	Propose(ctx context.Context, now time.Time) (*TickInput, error)
}

// TickInput is everything an algorithm contributes to one tick.
type TickInput struct {
	// Actions are the candidate actions, in the order the algorithm wants
	// them considered.
	Actions []*rcp.Action `yaml:"actions" json:"actions"`

	// Metrics and SegmentData populate the evaluation context.
	Metrics     map[string]any      `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	SegmentData map[string][]string `yaml:"segment_data,omitempty" json:"segment_data,omitempty"`

	// ManualOverride requests the emergency bypass for this tick.
	ManualOverride bool `yaml:"manual_override,omitempty" json:"manual_override,omitempty"`

	// Authority is the authority level the algorithm runs under, recorded
	// in run metadata.
	Authority rcp.Authority `yaml:"authority,omitempty" json:"authority,omitempty"`
}

// ActionExecutor applies surviving actions to production state. The
// runner retries nothing here; executors use the action's idempotency key
// for their own retry safety.
type ActionExecutor interface {
	Execute(ctx context.Context, action *rcp.Action) error
}

// FallbackMode is the runner's documented behavior when evaluation
// results cannot be audited (or evaluation is unavailable).
type FallbackMode string

const (
	// FallbackDeny drops the batch: no audit row, no execution.
	FallbackDeny FallbackMode = "deny"

	// FallbackBypass executes the evaluated batch anyway and flags the
	// run as bypassed. Loud, deliberate, and visible in run metadata.
	FallbackBypass FallbackMode = "bypass"
)

// Config tunes the runner.
type Config struct {
	// TickInterval is the pause between ticks per algorithm.
	// Default: 60s.
	TickInterval time.Duration

	// TickBudget is the wall-clock budget for one tick. Exceeding it is a
	// configuration or algorithm problem, not an evaluation failure.
	// Default: 10s.
	TickBudget time.Duration

	// Fallback selects behavior when audit persistence fails after retry.
	// Default: FallbackDeny.
	Fallback FallbackMode
}

// DefaultConfig returns the default runner configuration.
func DefaultConfig() *Config {
	return &Config{
		TickInterval: 60 * time.Second,
		TickBudget:   10 * time.Second,
		Fallback:     FallbackDeny,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.TickBudget <= 0 {
		return fmt.Errorf("tick budget must be positive")
	}
	switch c.Fallback {
	case FallbackDeny, FallbackBypass:
	default:
		return fmt.Errorf("unknown fallback mode %q", c.Fallback)
	}
	return nil
}

// TickReport is the run metadata of one tick.
type TickReport struct {
	RunID     string        `json:"run_id"`
	AlgoKey   string        `json:"algo_key"`
	Authority rcp.Authority `json:"authority"`
	Outcome   string        `json:"outcome"`
	Proposed  int           `json:"proposed"`
	Executed  int           `json:"executed"`
	Blocked   int           `json:"blocked"`
	Modified  int           `json:"modified"`
	RiskSpent float64       `json:"risk_spent"`

	// Bypassed is true when the manual override skipped evaluation or the
	// bypass fallback executed without audit.
	Bypassed bool `json:"bypassed"`

	// AuditPersisted is false when the tick ran without an audit row
	// (bypass fallback only; deny drops the batch instead).
	AuditPersisted bool          `json:"audit_persisted"`
	Duration       time.Duration `json:"duration"`
}

// Runner owns the per-algorithm tick loops.
type Runner struct {
	config     *Config
	source     PolicySource
	evaluator  *evaluator.Evaluator
	executor   ActionExecutor
	algorithms []Algorithm
	metrics    *metrics.RunnerMetrics
	logger     *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a runner.
func New(config *Config, source PolicySource, eval *evaluator.Evaluator, executor ActionExecutor, algorithms []Algorithm, m *metrics.RunnerMetrics, logger *slog.Logger) (*Runner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if source == nil || eval == nil || executor == nil {
		return nil, fmt.Errorf("source, evaluator, and executor are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		config:     config,
		source:     source,
		evaluator:  eval,
		executor:   executor,
		algorithms: algorithms,
		metrics:    m,
		logger:     logger.With("component", "runner"),
		stopCh:     make(chan struct{}),
	}, nil
}

// Start launches one tick loop per algorithm. Loops stop when ctx is
// cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	for _, algo := range r.algorithms {
		r.wg.Add(1)
		go r.loop(ctx, algo)
	}
	r.logger.Info("runner started",
		"algorithms", len(r.algorithms),
		"tick_interval", r.config.TickInterval,
	)
}

// Stop halts all tick loops and waits for in-flight ticks to finish.
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

func (r *Runner) loop(ctx context.Context, algo Algorithm) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			report := r.Tick(ctx, algo)
			r.logger.Info("tick complete",
				"run_id", report.RunID,
				"algo_key", report.AlgoKey,
				"outcome", report.Outcome,
				"authority", report.Authority,
				"proposed", report.Proposed,
				"executed", report.Executed,
				"blocked", report.Blocked,
				"modified", report.Modified,
				"risk_spent", report.RiskSpent,
				"rcp_bypassed", report.Bypassed,
				"audit_persisted", report.AuditPersisted,
				"duration", report.Duration,
			)
		}
	}
}

// Tick runs one evaluation cycle for one algorithm and returns its run
// metadata. Exported so the CLI can drive single ticks.
func (r *Runner) Tick(ctx context.Context, algo Algorithm) *TickReport {
	start := time.Now()
	report := &TickReport{
		RunID:          uuid.NewString(),
		AlgoKey:        algo.Key(),
		AuditPersisted: true,
	}
	defer func() {
		report.Duration = time.Since(start)
		r.metrics.ObserveTick(report.AlgoKey, report.Outcome, report.Executed, report.Duration)
	}()

	tickCtx, cancel := context.WithTimeout(ctx, r.config.TickBudget)
	defer cancel()

	input, err := algo.Propose(tickCtx, start)
	if err != nil {
		report.Outcome = "propose_error"
		r.logger.Error("algorithm proposal failed", "algo_key", report.AlgoKey, "error", err)
		return report
	}
	report.Proposed = len(input.Actions)
	report.Authority = input.Authority
	if len(input.Actions) == 0 {
		report.Outcome = "empty"
		return report
	}

	ectx := &rcp.EvaluationContext{
		AlgoKey:              algo.Key(),
		RunID:                report.RunID,
		Metrics:              input.Metrics,
		SegmentData:          input.SegmentData,
		Timestamp:            start,
		ManualOverrideActive: input.ManualOverride,
	}

	result, err := r.evaluator.Evaluate(tickCtx, ectx, r.source.Policies(), input.Actions)
	if err != nil {
		// The evaluation itself succeeded; the audit write did not. The
		// recorder already retried, so this is the operator-visible alert.
		r.metrics.RecordAuditWriteFailure()
		var recErr *evaluator.RecordError
		if !errors.As(err, &recErr) {
			report.Outcome = "evaluation_error"
			r.logger.Error("evaluation failed", "run_id", report.RunID, "error", err)
			return report
		}

		r.logger.Error("audit persistence failed after retry",
			"run_id", report.RunID,
			"algo_key", report.AlgoKey,
			"fallback", r.config.Fallback,
			"error", err,
		)
		if r.config.Fallback == FallbackDeny {
			report.Outcome = "audit_failed_denied"
			report.Blocked = len(input.Actions)
			return report
		}
		report.AuditPersisted = false
		report.Bypassed = true
	}

	report.Blocked = len(result.Blocked)
	report.Modified = len(result.Modified)
	report.RiskSpent = result.RiskCost
	report.Bypassed = report.Bypassed || result.Bypassed

	for _, action := range result.Surviving() {
		if err := r.executor.Execute(tickCtx, action); err != nil {
			r.logger.Error("action execution failed",
				"run_id", report.RunID,
				"action_id", action.ID,
				"idempotency_key", action.IdempotencyKey,
				"error", err,
			)
			continue
		}
		report.Executed++
	}

	if report.Outcome == "" {
		report.Outcome = "ok"
	}
	return report
}
