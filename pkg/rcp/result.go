package rcp

import (
	"fmt"
	"time"
)

// Verdict is the terminal evaluation state of a single action.
type Verdict string

const (
	VerdictAllowed  Verdict = "allowed"
	VerdictModified Verdict = "modified"
	VerdictBlocked  Verdict = "blocked"
)

// BatchResult summarizes the verdicts of a whole batch.
type BatchResult string

const (
	BatchAllowed  BatchResult = "allowed"
	BatchModified BatchResult = "modified"
	BatchBlocked  BatchResult = "blocked"
	BatchMixed    BatchResult = "mixed"
)

// Stage names where in the pipeline a note originated.
type Stage string

const (
	StageOverride Stage = "override"
	StageGate     Stage = "gate"
	StageMutation Stage = "mutation"
	StageGuard    Stage = "guard"
	StageLimit    Stage = "limit"
	StageRisk     Stage = "risk"
	StageError    Stage = "error"
)

// Note is one human-readable explanation of a gate, guard, mutation, or
// limiter event. Notes are ordered: they appear in the result in the order
// the events fired.
type Note struct {
	PolicyID string `json:"policy_id,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Stage    Stage  `json:"stage"`
	Message  string `json:"message"`
}

func (n Note) String() string {
	switch {
	case n.PolicyID != "" && n.ActionID != "":
		return fmt.Sprintf("[%s] policy %s, action %s: %s", n.Stage, n.PolicyID, n.ActionID, n.Message)
	case n.PolicyID != "":
		return fmt.Sprintf("[%s] policy %s: %s", n.Stage, n.PolicyID, n.Message)
	default:
		return fmt.Sprintf("[%s] %s", n.Stage, n.Message)
	}
}

// EvaluationResult is the outcome of evaluating one batch of actions.
// Allowed, Modified, and Blocked are disjoint; every input action lands in
// exactly one of them.
type EvaluationResult struct {
	// Allowed actions passed every applicable policy untouched.
	Allowed []*Action `json:"allowed"`

	// Modified actions survived with at least one field rewritten.
	Modified []*Action `json:"modified"`

	// Blocked actions were vetoed and must not be executed.
	Blocked []*Action `json:"blocked"`

	// Notes explains every gate, guard, mutation, and limiter event in
	// firing order.
	Notes []Note `json:"notes"`

	// RiskCost is the sum of risk contributions actually charged, i.e.
	// of actions that survived evaluation.
	RiskCost float64 `json:"risk_cost"`

	// Duration is the wall-clock time the evaluation took.
	Duration time.Duration `json:"duration"`

	// Bypassed is true when a manual override skipped all policies.
	Bypassed bool `json:"bypassed,omitempty"`

	// Reports carries one per-policy summary for each applicable policy,
	// in evaluation order. These feed the audit recorder.
	Reports []PolicyReport `json:"reports,omitempty"`
}

// BatchResult derives the batch-level result type: Mixed when blocked and
// surviving actions coexist, else the single uniform verdict.
func (r *EvaluationResult) BatchResult() BatchResult {
	survived := len(r.Allowed) + len(r.Modified)
	switch {
	case len(r.Blocked) > 0 && survived > 0:
		return BatchMixed
	case len(r.Blocked) > 0:
		return BatchBlocked
	case len(r.Modified) > 0:
		return BatchModified
	default:
		return BatchAllowed
	}
}

// Surviving returns the actions the runner may execute, allowed first,
// then modified, both in original submission order.
func (r *EvaluationResult) Surviving() []*Action {
	out := make([]*Action, 0, len(r.Allowed)+len(r.Modified))
	out = append(out, r.Allowed...)
	out = append(out, r.Modified...)
	return out
}

// PolicyReport summarizes one applicable policy's contribution to a batch.
type PolicyReport struct {
	PolicyID      string       `json:"policy_id"`
	PolicyVersion int          `json:"policy_version"`
	Mode          Mode         `json:"mode"`
	AllowedCount  int          `json:"allowed_count"`
	ModifiedCount int          `json:"modified_count"`
	BlockedCount  int          `json:"blocked_count"`
	NoteCount     int          `json:"note_count"`
	RiskCost      float64      `json:"risk_cost"`
	Diffs         []ActionDiff `json:"diffs,omitempty"`
}

// Result derives the per-policy result type from the report's counts.
func (p *PolicyReport) Result() BatchResult {
	survived := p.AllowedCount + p.ModifiedCount
	switch {
	case p.BlockedCount > 0 && survived > 0:
		return BatchMixed
	case p.BlockedCount > 0:
		return BatchBlocked
	case p.ModifiedCount > 0:
		return BatchModified
	default:
		return BatchAllowed
	}
}

// ActionDiff is a before/after snapshot of an action a policy rewrote or
// blocked, persisted in audit records.
type ActionDiff struct {
	ActionID string         `json:"action_id"`
	Verdict  Verdict        `json:"verdict"`
	Before   map[string]any `json:"before"`
	After    map[string]any `json:"after,omitempty"`
}
