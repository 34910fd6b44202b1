package rcp

import "fmt"

// Validate checks the policy's structural invariants. It returns a
// *ValidationError listing every violation, or nil when the policy is
// well-formed. Policies must be validated at load time; the evaluator
// assumes its inputs passed Validate.
func (p *Policy) Validate() error {
	var errs []string

	if p.ID == "" {
		errs = append(errs, "id is required")
	}
	if p.Name == "" {
		errs = append(errs, "name is required")
	}

	switch p.Scope {
	case ScopeGlobal:
	case ScopeAlgorithm:
		if p.AlgoKey == "" {
			errs = append(errs, "algorithm-scoped policy requires algo_key")
		}
	case ScopeSegment:
		if p.Selector.IsEmpty() {
			errs = append(errs, "segment-scoped policy requires a non-empty selector")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown scope %q", p.Scope))
	}

	switch p.Mode {
	case ModeMonitor, ModeEnforce:
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", p.Mode))
	}

	if p.RolloutPercent < 0 || p.RolloutPercent > 1 {
		errs = append(errs, fmt.Sprintf("rollout_percent %v outside [0,1]", p.RolloutPercent))
	}

	if g := p.HardGuards; g.WeightDeltaMax < 0 || g.BudgetShiftMaxPercent < 0 ||
		g.MaxPausesPerDay < 0 || g.RiskCeilingPerTick < 0 || g.MaxActionsPerTick < 0 {
		errs = append(errs, "hard_guards values must be non-negative")
	}

	if l := p.Limits; l != nil {
		if l.WindowSeconds <= 0 {
			errs = append(errs, "limits.window_seconds must be positive")
		}
		if l.MaxActionsInWindow <= 0 {
			errs = append(errs, "limits.max_actions_in_window must be positive")
		}
	}

	for i, g := range p.Gates {
		if err := g.validate(); err != "" {
			errs = append(errs, fmt.Sprintf("gate %d: %s", i, err))
		}
	}

	for i, m := range p.Mutations {
		if err := m.validate(); err != "" {
			errs = append(errs, fmt.Sprintf("mutation %d: %s", i, err))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{PolicyID: p.ID, Errors: errs}
	}
	return nil
}

func (g Gate) validate() string {
	if g.Left == "" {
		return "left metric path is required"
	}
	switch g.Op {
	case OpGreaterThan, OpGreaterEqual, OpLessThan, OpLessEqual, OpEqual, OpNotEqual:
	default:
		return fmt.Sprintf("unknown operator %q", g.Op)
	}
	hasValue := g.Value != nil
	hasMetric := g.Metric != ""
	if hasValue == hasMetric {
		return "exactly one of value and metric must be set"
	}
	if g.Factor < 0 {
		return "factor must be non-negative"
	}
	return ""
}

func (m MutationRule) validate() string {
	if m.ActionType == "" {
		return "action_type is required"
	}
	switch m.Kind {
	case MutationRequireFields:
		if len(m.RequiredFields) == 0 {
			return "require_fields rule needs required_fields"
		}
	case MutationClamp:
		if m.Field == "" {
			return "clamp rule needs a field"
		}
		if m.Min > m.Max {
			return fmt.Sprintf("clamp bounds inverted: min %v > max %v", m.Min, m.Max)
		}
	case MutationDeltaLimit:
		if m.Field == "" {
			return "delta_limit rule needs a field"
		}
		if m.MaxDelta <= 0 {
			return "delta_limit rule needs a positive max_delta"
		}
	default:
		return fmt.Sprintf("unknown mutation kind %q", m.Kind)
	}
	return ""
}

// ValidateAll validates a set of policies and additionally rejects
// duplicate IDs. Load-time helper for policy sources.
func ValidateAll(policies []*Policy) error {
	seen := make(map[string]bool, len(policies))
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return &ValidationError{PolicyID: p.ID, Errors: []string{"duplicate policy id"}}
		}
		seen[p.ID] = true
	}
	return nil
}
