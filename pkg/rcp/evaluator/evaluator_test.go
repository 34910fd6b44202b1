package evaluator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"trafficgate/saturn/pkg/rcp"
	"trafficgate/saturn/pkg/rcp/limiter"
)

// countingLimiter wraps the in-memory limiter and counts calls, so tests
// can assert monitor mode never consumes slots.
type countingLimiter struct {
	limiter.Limiter
	calls int
}

func (c *countingLimiter) CheckAndRecord(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	c.calls++
	return c.Limiter.CheckAndRecord(ctx, key, window, limit)
}

// fakeRecorder captures or fails batch recordings.
type fakeRecorder struct {
	batches int
	fail    error
}

func (f *fakeRecorder) RecordBatch(_ context.Context, _ *rcp.EvaluationContext, _ *rcp.EvaluationResult) error {
	f.batches++
	return f.fail
}

func newTestEvaluator(t *testing.T, rec Recorder) *Evaluator {
	t.Helper()
	e, err := New(nil, limiter.NewMemory(), rec, nil, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return e
}

func enforcePolicy(id string) *rcp.Policy {
	return &rcp.Policy{
		ID:             id,
		Name:           id,
		Version:        1,
		Scope:          rcp.ScopeGlobal,
		Mode:           rcp.ModeEnforce,
		RolloutPercent: 1,
		Enabled:        true,
	}
}

func reweight(id string, weight, previous float64) *rcp.Action {
	return &rcp.Action{
		ID:      id,
		Type:    rcp.ActionReweight,
		AlgoKey: "geo-optimizer",
		Data: map[string]any{
			"weight":          weight,
			"previous_weight": previous,
		},
	}
}

func evalContext() *rcp.EvaluationContext {
	return &rcp.EvaluationContext{
		AlgoKey:   "geo-optimizer",
		RunID:     "run-1",
		Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

// TestEvaluate_NoPolicies tests that without applicable policies every
// action is allowed untouched.
func TestEvaluate_NoPolicies(t *testing.T) {
	e := newTestEvaluator(t, nil)

	actions := []*rcp.Action{reweight("a1", 0.8, 0.6)}
	result, err := e.Evaluate(context.Background(), evalContext(), nil, actions)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Allowed) != 1 || len(result.Blocked) != 0 {
		t.Errorf("Expected 1 allowed action, got %+v", result)
	}
	if result.BatchResult() != rcp.BatchAllowed {
		t.Errorf("BatchResult() = %q, want allowed", result.BatchResult())
	}
}

// TestEvaluate_InputsNotMutated tests that the caller's actions survive a
// rewriting evaluation untouched.
func TestEvaluate_InputsNotMutated(t *testing.T) {
	e := newTestEvaluator(t, nil)

	p := enforcePolicy("weight-cap")
	p.Mutations = []rcp.MutationRule{
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationClamp, Field: "weight", Min: 0, Max: 0.7},
	}

	original := reweight("a1", 0.8, 0.6)
	result, err := e.Evaluate(context.Background(), evalContext(), []*rcp.Policy{p}, []*rcp.Action{original})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if v, _ := original.Number("weight"); v != 0.8 {
		t.Errorf("Input action mutated: weight = %v, want 0.8", v)
	}
	if len(result.Modified) != 1 {
		t.Fatalf("Expected 1 modified action, got %+v", result)
	}
	if v, _ := result.Modified[0].Number("weight"); v != 0.7 {
		t.Errorf("Result weight = %v, want 0.7", v)
	}
}

// TestEvaluate_ManualOverride tests the emergency bypass: every action is
// allowed without evaluation and the result is flagged.
func TestEvaluate_ManualOverride(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEvaluator(t, rec)

	// This policy would block the action were it evaluated.
	p := enforcePolicy("weight-guard")
	p.HardGuards = rcp.HardGuards{WeightDeltaMax: 0.01}

	ectx := evalContext()
	ectx.ManualOverrideActive = true

	result, err := e.Evaluate(context.Background(), ectx, []*rcp.Policy{p}, []*rcp.Action{reweight("a1", 0.9, 0.1)})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if !result.Bypassed {
		t.Error("Result should be flagged as bypassed")
	}
	if len(result.Allowed) != 1 || len(result.Blocked) != 0 {
		t.Errorf("Override should allow everything, got %+v", result)
	}
	if len(result.Notes) != 1 || result.Notes[0].Stage != rcp.StageOverride {
		t.Errorf("Expected one override note, got %v", result.Notes)
	}
	if rec.batches != 0 {
		t.Errorf("Override produced %d audit batches, reports should be empty", rec.batches)
	}
}

// TestEvaluate_HardGuardBlocks tests that a tripped hard guard blocks only
// the offending action and leaves the explaining note.
func TestEvaluate_HardGuardBlocks(t *testing.T) {
	e := newTestEvaluator(t, nil)

	p := enforcePolicy("weight-guard")
	p.HardGuards = rcp.HardGuards{WeightDeltaMax: 0.2}

	actions := []*rcp.Action{
		reweight("ok", 0.7, 0.6),
		reweight("too-big", 0.95, 0.6),
	}
	result, err := e.Evaluate(context.Background(), evalContext(), []*rcp.Policy{p}, actions)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Allowed) != 1 || result.Allowed[0].ID != "ok" {
		t.Errorf("Expected action ok allowed, got %+v", result.Allowed)
	}
	if len(result.Blocked) != 1 || result.Blocked[0].ID != "too-big" {
		t.Errorf("Expected action too-big blocked, got %+v", result.Blocked)
	}
	if result.BatchResult() != rcp.BatchMixed {
		t.Errorf("BatchResult() = %q, want mixed", result.BatchResult())
	}

	found := false
	for _, n := range result.Notes {
		if n.ActionID == "too-big" && strings.Contains(n.Message, "weight delta 0.35 exceeds 0.2") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a guard note for the blocked action, got %v", result.Notes)
	}
}

// TestEvaluate_RiskCeiling tests charge-first accounting: with a 1.0
// ceiling and three 0.5-risk actions, the first two fit exactly and the
// third is blocked without charge.
func TestEvaluate_RiskCeiling(t *testing.T) {
	e := newTestEvaluator(t, nil)

	p := enforcePolicy("risk-budget")
	p.HardGuards = rcp.HardGuards{RiskCeilingPerTick: 1.0}

	// Each reweight scores 0.1 base + 2.0 * 0.2 delta = 0.5.
	actions := []*rcp.Action{
		reweight("a1", 0.8, 0.6),
		reweight("a2", 0.8, 0.6),
		reweight("a3", 0.8, 0.6),
	}
	result, err := e.Evaluate(context.Background(), evalContext(), []*rcp.Policy{p}, actions)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Allowed) != 2 {
		t.Errorf("Expected 2 actions under the ceiling, got %d allowed", len(result.Allowed))
	}
	if len(result.Blocked) != 1 || result.Blocked[0].ID != "a3" {
		t.Errorf("Expected a3 blocked by the risk ceiling, got %+v", result.Blocked)
	}
	if result.RiskCost < 0.99 || result.RiskCost > 1.01 {
		t.Errorf("RiskCost = %v, blocked actions must not be charged", result.RiskCost)
	}

	found := false
	for _, n := range result.Notes {
		if n.Stage == rcp.StageRisk && n.ActionID == "a3" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a risk-stage note for a3, got %v", result.Notes)
	}
}

// TestEvaluate_RateLimit tests the sliding-window cap: the second action
// under a one-per-window limit is blocked with a limit note.
func TestEvaluate_RateLimit(t *testing.T) {
	e := newTestEvaluator(t, nil)

	p := enforcePolicy("rate-capped")
	p.Limits = &rcp.RateLimit{WindowSeconds: 3600, MaxActionsInWindow: 1}

	actions := []*rcp.Action{
		reweight("a1", 0.65, 0.6),
		reweight("a2", 0.65, 0.6),
	}
	result, err := e.Evaluate(context.Background(), evalContext(), []*rcp.Policy{p}, actions)
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Allowed) != 1 || len(result.Blocked) != 1 {
		t.Fatalf("Expected 1 allowed and 1 blocked, got %+v", result)
	}
	if result.Blocked[0].ID != "a2" {
		t.Errorf("Expected the second action rejected, got %q", result.Blocked[0].ID)
	}

	found := false
	for _, n := range result.Notes {
		if n.Stage == rcp.StageLimit && strings.Contains(n.Message, "rate limit exceeded") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a limit note, got %v", result.Notes)
	}
}

// TestEvaluate_PauseCeiling tests the daily pause cap.
func TestEvaluate_PauseCeiling(t *testing.T) {
	e := newTestEvaluator(t, nil)

	p := enforcePolicy("pause-guard")
	p.HardGuards = rcp.HardGuards{MaxPausesPerDay: 1}

	pause := func(id string) *rcp.Action {
		return &rcp.Action{ID: id, Type: rcp.ActionPause, AlgoKey: "geo-optimizer", Data: map[string]any{}}
	}

	result, err := e.Evaluate(context.Background(), evalContext(), []*rcp.Policy{p},
		[]*rcp.Action{pause("p1"), pause("p2")})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Allowed) != 1 || len(result.Blocked) != 1 {
		t.Fatalf("Expected 1 allowed and 1 blocked pause, got %+v", result)
	}
	found := false
	for _, n := range result.Notes {
		if strings.Contains(n.Message, "daily pause ceiling") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a pause ceiling note, got %v", result.Notes)
	}
}

// TestEvaluate_MonitorMode tests that monitor policies never block or
// rewrite, tag their notes, and consume no limiter slots.
func TestEvaluate_MonitorMode(t *testing.T) {
	lim := &countingLimiter{Limiter: limiter.NewMemory()}
	e, err := New(nil, lim, nil, nil, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	p := enforcePolicy("shadow-guard")
	p.Mode = rcp.ModeMonitor
	p.HardGuards = rcp.HardGuards{WeightDeltaMax: 0.2}
	p.Limits = &rcp.RateLimit{WindowSeconds: 3600, MaxActionsInWindow: 1}
	p.Mutations = []rcp.MutationRule{
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationClamp, Field: "weight", Min: 0, Max: 0.7},
	}

	original := reweight("a1", 0.95, 0.6)
	result, err := e.Evaluate(context.Background(), evalContext(), []*rcp.Policy{p}, []*rcp.Action{original})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Blocked) != 0 {
		t.Errorf("Monitor mode must not block, got %+v", result.Blocked)
	}
	if len(result.Allowed) != 1 {
		t.Fatalf("Expected the action allowed, got %+v", result)
	}
	if v, _ := result.Allowed[0].Number("weight"); v != 0.95 {
		t.Errorf("Monitor mode must not rewrite: weight = %v, want 0.95", v)
	}

	for _, n := range result.Notes {
		if !strings.HasPrefix(n.Message, "monitor: ") {
			t.Errorf("Monitor note missing tag: %q", n.Message)
		}
	}
	if lim.calls != 0 {
		t.Errorf("Monitor mode consumed %d limiter slots, want 0", lim.calls)
	}

	if len(result.Reports) != 1 || result.Reports[0].AllowedCount != 1 {
		t.Errorf("Monitor report should count the action allowed, got %+v", result.Reports)
	}
}

// TestEvaluate_PriorityOrder tests stable evaluation order: ascending
// priority, ties broken by ID, visible in the report order.
func TestEvaluate_PriorityOrder(t *testing.T) {
	e := newTestEvaluator(t, nil)

	pb := enforcePolicy("b-policy")
	pb.Priority = 1
	pa := enforcePolicy("a-policy")
	pa.Priority = 2
	pc := enforcePolicy("c-policy")
	pc.Priority = 1

	result, err := e.Evaluate(context.Background(), evalContext(),
		[]*rcp.Policy{pa, pb, pc}, []*rcp.Action{reweight("a1", 0.65, 0.6)})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	var order []string
	for _, r := range result.Reports {
		order = append(order, r.PolicyID)
	}
	want := []string{"b-policy", "c-policy", "a-policy"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("Report order = %v, want %v", order, want)
	}
}

// TestEvaluate_FirstBlockWins tests that once a policy blocks an action,
// later policies do not process it.
func TestEvaluate_FirstBlockWins(t *testing.T) {
	e := newTestEvaluator(t, nil)

	blocker := enforcePolicy("a-blocker")
	blocker.Priority = 1
	blocker.HardGuards = rcp.HardGuards{WeightDeltaMax: 0.1}

	later := enforcePolicy("b-later")
	later.Priority = 2

	result, err := e.Evaluate(context.Background(), evalContext(),
		[]*rcp.Policy{blocker, later}, []*rcp.Action{reweight("a1", 0.9, 0.6)})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}

	if len(result.Blocked) != 1 {
		t.Fatalf("Expected the action blocked, got %+v", result)
	}
	for _, r := range result.Reports {
		switch r.PolicyID {
		case "a-blocker":
			if r.BlockedCount != 1 {
				t.Errorf("Blocker report = %+v, want 1 blocked", r)
			}
		case "b-later":
			if r.AllowedCount != 0 || r.BlockedCount != 0 {
				t.Errorf("Later policy should not have processed the action: %+v", r)
			}
		}
	}
}

// TestEvaluate_RecorderFailure tests that an audit write failure surfaces
// as a RecordError while the result stays complete.
func TestEvaluate_RecorderFailure(t *testing.T) {
	rec := &fakeRecorder{fail: errors.New("disk full")}
	e := newTestEvaluator(t, rec)

	p := enforcePolicy("weight-guard")
	result, err := e.Evaluate(context.Background(), evalContext(),
		[]*rcp.Policy{p}, []*rcp.Action{reweight("a1", 0.65, 0.6)})

	var recErr *RecordError
	if !errors.As(err, &recErr) {
		t.Fatalf("Expected a *RecordError, got %v", err)
	}
	if recErr.RunID != "run-1" {
		t.Errorf("RecordError.RunID = %q, want run-1", recErr.RunID)
	}
	if result == nil || len(result.Allowed) != 1 {
		t.Errorf("Result must still be complete alongside the error, got %+v", result)
	}
}

// TestEvaluate_RecorderReceivesReports tests that applicable policies
// produce exactly one recorded batch.
func TestEvaluate_RecorderReceivesReports(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEvaluator(t, rec)

	p := enforcePolicy("weight-guard")
	if _, err := e.Evaluate(context.Background(), evalContext(),
		[]*rcp.Policy{p}, []*rcp.Action{reweight("a1", 0.65, 0.6)}); err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if rec.batches != 1 {
		t.Errorf("Recorder saw %d batches, want 1", rec.batches)
	}

	// No applicable policies means nothing to record.
	if _, err := e.Evaluate(context.Background(), evalContext(), nil,
		[]*rcp.Action{reweight("a2", 0.65, 0.6)}); err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if rec.batches != 1 {
		t.Errorf("Recorder saw %d batches after empty policy set, want still 1", rec.batches)
	}
}

// TestEvaluate_InapplicablePolicyExcluded tests that gate-excluded
// policies contribute no reports.
func TestEvaluate_InapplicablePolicyExcluded(t *testing.T) {
	e := newTestEvaluator(t, nil)

	p := enforcePolicy("other-algo")
	p.Scope = rcp.ScopeAlgorithm
	p.AlgoKey = "device-optimizer"

	result, err := e.Evaluate(context.Background(), evalContext(),
		[]*rcp.Policy{p}, []*rcp.Action{reweight("a1", 0.9, 0.1)})
	if err != nil {
		t.Fatalf("Evaluate() error: %v", err)
	}
	if len(result.Reports) != 0 {
		t.Errorf("Inapplicable policy produced reports: %+v", result.Reports)
	}
	if len(result.Allowed) != 1 {
		t.Errorf("Action should pass with no applicable policies, got %+v", result)
	}
}
