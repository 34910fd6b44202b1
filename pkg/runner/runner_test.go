package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"trafficgate/saturn/pkg/rcp"
	"trafficgate/saturn/pkg/rcp/evaluator"
	"trafficgate/saturn/pkg/rcp/limiter"
)

// fakeAlgorithm serves one canned tick input.
type fakeAlgorithm struct {
	key   string
	input *TickInput
	err   error
}

func (f *fakeAlgorithm) Key() string { return f.key }

func (f *fakeAlgorithm) Propose(ctx context.Context, now time.Time) (*TickInput, error) {
	return f.input, f.err
}

// captureExecutor records every executed action.
type captureExecutor struct {
	actions []*rcp.Action
}

func (c *captureExecutor) Execute(ctx context.Context, action *rcp.Action) error {
	c.actions = append(c.actions, action)
	return nil
}

// failRecorder always fails audit persistence.
type failRecorder struct{}

func (failRecorder) RecordBatch(ctx context.Context, ectx *rcp.EvaluationContext, result *rcp.EvaluationResult) error {
	return errors.New("storage down")
}

func permissivePolicy() *rcp.Policy {
	return &rcp.Policy{
		ID: "weight-guard", Name: "Weight guard", Version: 1,
		Scope: rcp.ScopeGlobal, Mode: rcp.ModeEnforce,
		RolloutPercent: 1, Enabled: true,
	}
}

func tickActions() []*rcp.Action {
	return []*rcp.Action{
		{ID: "act-1", Type: rcp.ActionReweight, AlgoKey: "geo-optimizer",
			Data: map[string]any{"weight": 0.55, "previous_weight": 0.5}},
		{ID: "act-2", Type: rcp.ActionReweight, AlgoKey: "geo-optimizer",
			Data: map[string]any{"weight": 0.3, "previous_weight": 0.35}},
	}
}

func newTestRunner(t *testing.T, fallback FallbackMode, rec evaluator.Recorder, algo Algorithm) (*Runner, *captureExecutor) {
	t.Helper()

	eval, err := evaluator.New(nil, limiter.NewMemory(), rec, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create evaluator: %v", err)
	}

	executor := &captureExecutor{}
	config := &Config{TickInterval: time.Minute, TickBudget: 10 * time.Second, Fallback: fallback}
	r, err := New(config, StaticSource{permissivePolicy()}, eval, executor, []Algorithm{algo}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create runner: %v", err)
	}
	return r, executor
}

// TestTick_ExecutesSurvivors tests the happy path: proposed actions pass
// the policy and reach the executor.
func TestTick_ExecutesSurvivors(t *testing.T) {
	algo := &fakeAlgorithm{key: "geo-optimizer", input: &TickInput{Actions: tickActions()}}
	r, executor := newTestRunner(t, FallbackDeny, nil, algo)

	report := r.Tick(context.Background(), algo)

	if report.Outcome != "ok" {
		t.Fatalf("Outcome = %q, want ok", report.Outcome)
	}
	if report.Proposed != 2 || report.Executed != 2 || report.Blocked != 0 {
		t.Errorf("Counts = %d proposed / %d executed / %d blocked, want 2/2/0",
			report.Proposed, report.Executed, report.Blocked)
	}
	if len(executor.actions) != 2 {
		t.Errorf("Executor received %d actions, want 2", len(executor.actions))
	}
	if report.RunID == "" {
		t.Error("Report should carry a generated run ID")
	}
	if !report.AuditPersisted {
		t.Error("AuditPersisted should be true on a clean tick")
	}
}

// TestTick_EmptyProposal tests that an idle algorithm produces an empty
// tick with no evaluation.
func TestTick_EmptyProposal(t *testing.T) {
	algo := &fakeAlgorithm{key: "geo-optimizer", input: &TickInput{}}
	r, executor := newTestRunner(t, FallbackDeny, nil, algo)

	report := r.Tick(context.Background(), algo)

	if report.Outcome != "empty" {
		t.Errorf("Outcome = %q, want empty", report.Outcome)
	}
	if len(executor.actions) != 0 {
		t.Errorf("Executor should receive nothing, got %d actions", len(executor.actions))
	}
}

// TestTick_ProposeError tests that a failing algorithm produces a
// propose_error tick with no execution.
func TestTick_ProposeError(t *testing.T) {
	algo := &fakeAlgorithm{key: "geo-optimizer", err: errors.New("upstream timeout")}
	r, executor := newTestRunner(t, FallbackDeny, nil, algo)

	report := r.Tick(context.Background(), algo)

	if report.Outcome != "propose_error" {
		t.Errorf("Outcome = %q, want propose_error", report.Outcome)
	}
	if len(executor.actions) != 0 {
		t.Errorf("Executor should receive nothing, got %d actions", len(executor.actions))
	}
}

// TestTick_AuditFailureDenies tests the deny fallback: when the audit
// write fails the whole batch is dropped.
func TestTick_AuditFailureDenies(t *testing.T) {
	algo := &fakeAlgorithm{key: "geo-optimizer", input: &TickInput{Actions: tickActions()}}
	r, executor := newTestRunner(t, FallbackDeny, failRecorder{}, algo)

	report := r.Tick(context.Background(), algo)

	if report.Outcome != "audit_failed_denied" {
		t.Fatalf("Outcome = %q, want audit_failed_denied", report.Outcome)
	}
	if report.Blocked != 2 || report.Executed != 0 {
		t.Errorf("Counts = %d blocked / %d executed, want 2/0", report.Blocked, report.Executed)
	}
	if len(executor.actions) != 0 {
		t.Errorf("Deny fallback must execute nothing, got %d actions", len(executor.actions))
	}
}

// TestTick_AuditFailureBypasses tests the bypass fallback: the evaluated
// batch still executes and the report flags the missing audit row.
func TestTick_AuditFailureBypasses(t *testing.T) {
	algo := &fakeAlgorithm{key: "geo-optimizer", input: &TickInput{Actions: tickActions()}}
	r, executor := newTestRunner(t, FallbackBypass, failRecorder{}, algo)

	report := r.Tick(context.Background(), algo)

	if report.Outcome != "ok" {
		t.Fatalf("Outcome = %q, want ok", report.Outcome)
	}
	if !report.Bypassed {
		t.Error("Bypass fallback must flag the run as bypassed")
	}
	if report.AuditPersisted {
		t.Error("AuditPersisted must be false when the audit write failed")
	}
	if len(executor.actions) != 2 {
		t.Errorf("Bypass fallback should still execute survivors, got %d actions", len(executor.actions))
	}
}

// TestTick_ManualOverride tests that an override tick executes everything
// and is flagged as bypassed.
func TestTick_ManualOverride(t *testing.T) {
	algo := &fakeAlgorithm{key: "geo-optimizer", input: &TickInput{
		Actions:        tickActions(),
		ManualOverride: true,
		Authority:      rcp.AuthorityElevated,
	}}
	r, executor := newTestRunner(t, FallbackDeny, nil, algo)

	report := r.Tick(context.Background(), algo)

	if report.Outcome != "ok" || !report.Bypassed {
		t.Errorf("Outcome = %q bypassed = %v, want ok/true", report.Outcome, report.Bypassed)
	}
	if report.Authority != rcp.AuthorityElevated {
		t.Errorf("Authority = %q, want elevated", report.Authority)
	}
	if len(executor.actions) != 2 {
		t.Errorf("Override should execute everything, got %d actions", len(executor.actions))
	}
}

// TestConfig_Validate tests the runner config invariants.
func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate, got: %v", err)
	}
	bad := []*Config{
		{TickInterval: 0, TickBudget: time.Second, Fallback: FallbackDeny},
		{TickInterval: time.Minute, TickBudget: 0, Fallback: FallbackDeny},
		{TickInterval: time.Minute, TickBudget: time.Second, Fallback: "shrug"},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("Config %d should fail validation", i)
		}
	}
}
