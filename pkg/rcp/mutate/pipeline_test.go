package mutate

import (
	"strings"
	"testing"

	"trafficgate/saturn/pkg/rcp"
)

func reweight(weight, previous float64) *rcp.Action {
	return &rcp.Action{
		ID:   "act-1",
		Type: rcp.ActionReweight,
		Data: map[string]any{
			"weight":          weight,
			"previous_weight": previous,
		},
	}
}

// TestApply_Clamp tests that out-of-range values snap to the nearest bound
// and in-range values pass untouched.
func TestApply_Clamp(t *testing.T) {
	p := &rcp.Policy{ID: "weight-cap", Mutations: []rcp.MutationRule{
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationClamp, Field: "weight", Min: 0, Max: 0.7},
	}}

	t.Run("above max", func(t *testing.T) {
		a := reweight(0.8, 0.5)
		out := Apply(p, a)
		if !out.Changed {
			t.Fatal("Apply() should rewrite an out-of-range weight")
		}
		if v, _ := a.Number("weight"); v != 0.7 {
			t.Errorf("weight = %v, want 0.7", v)
		}
		if len(out.Notes) != 1 || !strings.Contains(out.Notes[0].Message, "clamped weight from 0.8 to 0.7") {
			t.Errorf("Expected a clamp note, got %v", out.Notes)
		}
	})

	t.Run("below min", func(t *testing.T) {
		a := reweight(-0.1, 0.5)
		out := Apply(p, a)
		if v, _ := a.Number("weight"); !out.Changed || v != 0 {
			t.Errorf("weight = %v, want clamped to 0", v)
		}
	})

	t.Run("in range", func(t *testing.T) {
		a := reweight(0.5, 0.5)
		out := Apply(p, a)
		if out.Changed || len(out.Notes) != 0 {
			t.Errorf("In-range value should pass untouched, got %+v", out)
		}
	})

	t.Run("field absent", func(t *testing.T) {
		a := &rcp.Action{ID: "a", Type: rcp.ActionReweight, Data: map[string]any{}}
		out := Apply(p, a)
		if out.Changed || out.Blocked {
			t.Errorf("Clamp of an absent field is a no-op, got %+v", out)
		}
	})
}

// TestApply_DeltaLimit tests that oversized deltas are limited to
// previous +/- max_delta, preserving direction.
func TestApply_DeltaLimit(t *testing.T) {
	p := &rcp.Policy{ID: "delta-cap", Mutations: []rcp.MutationRule{
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationDeltaLimit, Field: "weight", MaxDelta: 0.1},
	}}

	t.Run("upward overshoot", func(t *testing.T) {
		a := reweight(0.9, 0.6)
		out := Apply(p, a)
		if v, _ := a.Number("weight"); !out.Changed || v != 0.7 {
			t.Errorf("weight = %v, want limited to 0.7", v)
		}
	})

	t.Run("downward overshoot", func(t *testing.T) {
		a := reweight(0.2, 0.6)
		out := Apply(p, a)
		if v, _ := a.Number("weight"); !out.Changed || v != 0.5 {
			t.Errorf("weight = %v, want limited to 0.5", v)
		}
	})

	t.Run("within delta", func(t *testing.T) {
		a := reweight(0.65, 0.6)
		out := Apply(p, a)
		if out.Changed {
			t.Error("Delta within bounds should pass untouched")
		}
	})

	t.Run("no previous value", func(t *testing.T) {
		a := &rcp.Action{ID: "a", Type: rcp.ActionReweight, Data: map[string]any{"weight": 0.9}}
		out := Apply(p, a)
		if out.Changed {
			t.Error("Delta limit without a previous value is a no-op")
		}
	})
}

// TestApply_RequireFields tests the blocking variant: a missing required
// field vetoes the action and stops the pipeline.
func TestApply_RequireFields(t *testing.T) {
	p := &rcp.Policy{ID: "paperwork", Mutations: []rcp.MutationRule{
		{ActionType: rcp.ActionPause, Kind: rcp.MutationRequireFields, RequiredFields: []string{"justification", "plan_id"}},
		{ActionType: rcp.ActionPause, Kind: rcp.MutationClamp, Field: "duration", Min: 0, Max: 60},
	}}

	t.Run("missing field blocks and short-circuits", func(t *testing.T) {
		a := &rcp.Action{ID: "a", Type: rcp.ActionPause, Data: map[string]any{
			"justification": "spend spike",
			"duration":      120.0,
		}}
		out := Apply(p, a)
		if !out.Blocked {
			t.Fatal("Missing plan_id should block")
		}
		if !strings.Contains(out.BlockReason, "plan_id") {
			t.Errorf("BlockReason = %q, should name the missing field", out.BlockReason)
		}
		// The later clamp must not run on a blocked action.
		if v, _ := a.Number("duration"); v != 120.0 {
			t.Errorf("duration = %v, pipeline should stop at the veto", v)
		}
	})

	t.Run("all fields present", func(t *testing.T) {
		a := &rcp.Action{ID: "a", Type: rcp.ActionPause, Data: map[string]any{
			"justification": "spend spike",
			"plan_id":       "plan-7",
			"duration":      120.0,
		}}
		out := Apply(p, a)
		if out.Blocked {
			t.Errorf("Action with all fields should pass, got %+v", out)
		}
		if v, _ := a.Number("duration"); v != 60 {
			t.Errorf("duration = %v, want clamped to 60", v)
		}
	})
}

// TestApply_SkipsOtherActionTypes tests that rules only touch their own
// action type.
func TestApply_SkipsOtherActionTypes(t *testing.T) {
	p := &rcp.Policy{ID: "weight-cap", Mutations: []rcp.MutationRule{
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationClamp, Field: "weight", Min: 0, Max: 0.5},
	}}

	a := &rcp.Action{ID: "a", Type: rcp.ActionBudgetShift, Data: map[string]any{"weight": 0.9}}
	out := Apply(p, a)
	if out.Changed || out.Blocked {
		t.Errorf("Rule for another action type must be skipped, got %+v", out)
	}
	if v, _ := a.Number("weight"); v != 0.9 {
		t.Errorf("weight = %v, want untouched 0.9", v)
	}
}

// TestApply_RulesRunInOrder tests that rules execute in registration order
// over the same field.
func TestApply_RulesRunInOrder(t *testing.T) {
	p := &rcp.Policy{ID: "ordered", Mutations: []rcp.MutationRule{
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationDeltaLimit, Field: "weight", MaxDelta: 0.3},
		{ActionType: rcp.ActionReweight, Kind: rcp.MutationClamp, Field: "weight", Min: 0, Max: 0.8},
	}}

	// 1.5 -> delta limit to 0.6+0.3=0.9 -> clamp to 0.8.
	a := reweight(1.5, 0.6)
	out := Apply(p, a)
	if v, _ := a.Number("weight"); v != 0.8 {
		t.Errorf("weight = %v, want 0.8 after delta limit then clamp", v)
	}
	if len(out.Notes) != 2 {
		t.Errorf("Expected 2 notes (one per rewrite), got %d", len(out.Notes))
	}
}
