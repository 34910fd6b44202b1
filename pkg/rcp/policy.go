package rcp

import "time"

// Scope determines which evaluation contexts a policy applies to.
type Scope string

const (
	// ScopeGlobal applies to every algorithm and segment.
	ScopeGlobal Scope = "global"

	// ScopeAlgorithm applies only to contexts whose algorithm key matches
	// the policy's AlgoKey.
	ScopeAlgorithm Scope = "algorithm"

	// ScopeSegment applies only to contexts whose segment attributes
	// intersect the policy's Selector.
	ScopeSegment Scope = "segment"
)

// Mode controls whether a policy enforces its rules or only observes.
type Mode string

const (
	// ModeMonitor records what would have happened but never blocks or
	// rewrites an action.
	ModeMonitor Mode = "monitor"

	// ModeEnforce blocks and rewrites actions according to the policy's
	// rules.
	ModeEnforce Mode = "enforce"
)

// Authority is the minimal actor authority required to edit a policy.
// It is checked by the administrative surface, never at evaluation time.
type Authority string

const (
	AuthorityViewer   Authority = "viewer"
	AuthorityOperator Authority = "operator"
	AuthorityAdmin    Authority = "admin"
	AuthorityElevated Authority = "elevated"
)

// Policy is a versioned governance rule set for automated traffic actions.
//
// Policies are read-only from the evaluator's perspective: the
// administrative surface creates new versions, the evaluator only consumes
// them. A policy applies to a batch when all of its applicability checks
// pass (enabled, not expired, scope, schedule, rollout sample, gates).
type Policy struct {
	// ID uniquely identifies the policy across versions.
	ID string `yaml:"id" json:"id"`

	// Name is a human-readable label used in notes and audit records.
	Name string `yaml:"name" json:"name"`

	// Version is incremented by the administrative surface on every update.
	Version int `yaml:"version" json:"version"`

	// Priority orders policies during evaluation. Lower values evaluate
	// first; ties break on ID so the order is always stable.
	Priority int `yaml:"priority" json:"priority"`

	// Scope selects which contexts the policy governs.
	Scope Scope `yaml:"scope" json:"scope"`

	// AlgoKey is required when Scope is ScopeAlgorithm.
	AlgoKey string `yaml:"algo_key,omitempty" json:"algo_key,omitempty"`

	// Selector is required when Scope is ScopeSegment.
	Selector *Selector `yaml:"selector,omitempty" json:"selector,omitempty"`

	// Mode selects monitor or enforce behavior.
	Mode Mode `yaml:"mode" json:"mode"`

	// AuthorityRequired is the minimal authority needed to edit this policy.
	AuthorityRequired Authority `yaml:"authority_required,omitempty" json:"authority_required,omitempty"`

	// HardGuards are ceilings that veto an action when exceeded.
	HardGuards HardGuards `yaml:"hard_guards,omitempty" json:"hard_guards,omitempty"`

	// SoftGuards are advisory flags recorded as notes, never blocking.
	SoftGuards SoftGuards `yaml:"soft_guards,omitempty" json:"soft_guards,omitempty"`

	// Limits is the rate-limit window for actions admitted under this
	// policy. Nil means no rate limit.
	Limits *RateLimit `yaml:"limits,omitempty" json:"limits,omitempty"`

	// Gates are metric conditions that must all hold for the policy to
	// apply to a batch.
	Gates []Gate `yaml:"gates,omitempty" json:"gates,omitempty"`

	// Mutations are per-action-type rewrite rules applied in order.
	Mutations []MutationRule `yaml:"mutations,omitempty" json:"mutations,omitempty"`

	// ScheduleCron restricts the policy to a tolerance window around
	// scheduled occurrences. Empty means always in schedule.
	ScheduleCron string `yaml:"schedule_cron,omitempty" json:"schedule_cron,omitempty"`

	// RolloutPercent is the fraction of evaluations the policy is active
	// for, in [0,1]. Sampling is deterministic per (policy, algo, run).
	RolloutPercent float64 `yaml:"rollout_percent" json:"rollout_percent"`

	// ExpiresAt disables the policy after the given instant. Nil means
	// never expires.
	ExpiresAt *time.Time `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`

	// Enabled is the kill-switch. Disabled policies never apply.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Selector matches segment-scoped policies against context attributes.
// An empty list means "don't care" for that attribute; a non-empty list
// must intersect the corresponding context attribute values.
type Selector struct {
	Geos           []string `yaml:"geos,omitempty" json:"geos,omitempty"`
	Devices        []string `yaml:"devices,omitempty" json:"devices,omitempty"`
	Sources        []string `yaml:"sources,omitempty" json:"sources,omitempty"`
	DestinationIDs []string `yaml:"destination_ids,omitempty" json:"destination_ids,omitempty"`
}

// IsEmpty reports whether the selector carries no match lists at all.
func (s *Selector) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.Geos) == 0 && len(s.Devices) == 0 &&
		len(s.Sources) == 0 && len(s.DestinationIDs) == 0
}

// HardGuards are numeric ceilings enforced per action or per batch.
// Zero values mean the corresponding guard is not configured.
type HardGuards struct {
	// WeightDeltaMax blocks reweight actions whose |new-old| weight delta
	// exceeds this value.
	WeightDeltaMax float64 `yaml:"weight_delta_max,omitempty" json:"weight_delta_max,omitempty"`

	// BudgetShiftMaxPercent blocks budget actions whose relative shift
	// |new-old|/old exceeds this fraction.
	BudgetShiftMaxPercent float64 `yaml:"budget_shift_max_percent,omitempty" json:"budget_shift_max_percent,omitempty"`

	// MaxPausesPerDay caps pause actions admitted per (policy, algo) over
	// a rolling 24 hour window.
	MaxPausesPerDay int `yaml:"max_pauses_per_day,omitempty" json:"max_pauses_per_day,omitempty"`

	// RiskCeilingPerTick blocks an action once the batch's cumulative risk
	// cost would exceed this value.
	RiskCeilingPerTick float64 `yaml:"risk_ceiling_per_tick,omitempty" json:"risk_ceiling_per_tick,omitempty"`

	// MaxActionsPerTick blocks actions beyond this count in a single batch.
	MaxActionsPerTick int `yaml:"max_actions_per_tick,omitempty" json:"max_actions_per_tick,omitempty"`
}

// SoftGuards are advisory checks. Violations are recorded as notes and in
// audit records but never block an action.
type SoftGuards struct {
	// RequireJustification notes actions missing a "justification" field.
	RequireJustification bool `yaml:"require_justification,omitempty" json:"require_justification,omitempty"`

	// RequirePlanID notes actions missing a "plan_id" field.
	RequirePlanID bool `yaml:"require_plan_id,omitempty" json:"require_plan_id,omitempty"`

	// ApprovalThreshold notes actions whose risk contribution meets or
	// exceeds this value. Zero disables the check.
	ApprovalThreshold float64 `yaml:"approval_threshold,omitempty" json:"approval_threshold,omitempty"`
}

// RateLimit is a sliding-window cap on admitted actions per (policy, algo).
type RateLimit struct {
	// WindowSeconds is the sliding window length.
	WindowSeconds int `yaml:"window_seconds" json:"window_seconds"`

	// MaxActionsInWindow is the number of actions admitted per window.
	MaxActionsInWindow int `yaml:"max_actions_in_window" json:"max_actions_in_window"`
}

// Window returns the rate-limit window as a duration.
func (r *RateLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// CompareOp is the comparison operator of a gate condition.
type CompareOp string

const (
	OpGreaterThan  CompareOp = "gt"
	OpGreaterEqual CompareOp = "gte"
	OpLessThan     CompareOp = "lt"
	OpLessEqual    CompareOp = "lte"
	OpEqual        CompareOp = "eq"
	OpNotEqual     CompareOp = "neq"
)

// Gate is a single metric condition. All gates of a policy must hold for
// the policy to apply.
//
// The left side is always a metric path. The right side is either a
// constant (Value) or another metric path (Metric), optionally scaled by
// Factor, so ratio conditions like "clicks > 0.8 * impressions" are a
// single gate.
type Gate struct {
	// Left is the dotted path of the metric on the left side.
	Left string `yaml:"left" json:"left"`

	// Op is the comparison operator.
	Op CompareOp `yaml:"op" json:"op"`

	// Value is the right side constant. Exactly one of Value and Metric
	// must be set.
	Value *float64 `yaml:"value,omitempty" json:"value,omitempty"`

	// Metric is the right side metric path.
	Metric string `yaml:"metric,omitempty" json:"metric,omitempty"`

	// Factor scales the right side. Zero is treated as 1.
	Factor float64 `yaml:"factor,omitempty" json:"factor,omitempty"`
}

// MutationKind discriminates the closed set of mutation rule variants.
type MutationKind string

const (
	// MutationRequireFields blocks the action when any listed field is
	// absent from its data.
	MutationRequireFields MutationKind = "require_fields"

	// MutationClamp rewrites a field to the nearest bound of [Min, Max].
	MutationClamp MutationKind = "clamp"

	// MutationDeltaLimit clamps a field to previous±MaxDelta, comparing
	// against the companion "previous_<field>" value.
	MutationDeltaLimit MutationKind = "delta_limit"
)

// MutationRule is one tagged rewrite rule of a policy's mutation pipeline.
// Only the fields relevant to Kind are consulted; Validate rejects rules
// whose shape does not match their kind.
type MutationRule struct {
	// ActionType selects which actions the rule applies to.
	ActionType ActionType `yaml:"action_type" json:"action_type"`

	// Kind selects the rule variant.
	Kind MutationKind `yaml:"kind" json:"kind"`

	// Field is the data field the rule rewrites (clamp, delta_limit).
	Field string `yaml:"field,omitempty" json:"field,omitempty"`

	// Min and Max are the clamp bounds.
	Min float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// MaxDelta is the delta_limit bound.
	MaxDelta float64 `yaml:"max_delta,omitempty" json:"max_delta,omitempty"`

	// RequiredFields lists the fields checked by require_fields.
	RequiredFields []string `yaml:"required_fields,omitempty" json:"required_fields,omitempty"`
}
