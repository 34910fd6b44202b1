package gate

import (
	"fmt"
	"log/slog"

	"trafficgate/saturn/pkg/rcp"
)

// Evaluator runs the full applicability chain for one policy against one
// evaluation context.
type Evaluator struct {
	schedule *Schedule
	logger   *slog.Logger
}

// NewEvaluator creates a gate evaluator with the given schedule matcher.
// A nil schedule uses the default tolerance.
func NewEvaluator(schedule *Schedule, logger *slog.Logger) *Evaluator {
	if schedule == nil {
		schedule = NewSchedule(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		schedule: schedule,
		logger:   logger.With("component", "rcp.gate"),
	}
}

// Applicable reports whether the policy applies to the context, with notes
// explaining any exclusion or configuration warning. The checks run in a
// fixed order: enabled, expiry, scope, schedule, rollout, gates. The first
// failed check excludes the policy; later checks are not evaluated.
func (e *Evaluator) Applicable(p *rcp.Policy, ctx *rcp.EvaluationContext) (bool, []rcp.Note) {
	if !p.Enabled {
		return false, nil
	}

	if p.ExpiresAt != nil && !p.ExpiresAt.After(ctx.Timestamp) {
		return false, []rcp.Note{{
			PolicyID: p.ID,
			Stage:    rcp.StageGate,
			Message:  fmt.Sprintf("expired at %s", p.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")),
		}}
	}

	if !scopeMatches(p, ctx) {
		return false, nil
	}

	inWindow, err := e.schedule.InWindow(p.ScheduleCron, ctx.Timestamp)
	if err != nil {
		// Fail-open: a broken cron expression must not disable governance.
		e.logger.Warn("malformed cron expression, treating policy as always in schedule",
			"policy_id", p.ID,
			"schedule", p.ScheduleCron,
			"error", err,
		)
	}
	if !inWindow {
		return false, []rcp.Note{{
			PolicyID: p.ID,
			Stage:    rcp.StageGate,
			Message:  fmt.Sprintf("outside schedule window %q (tolerance %s)", p.ScheduleCron, e.schedule.Tolerance()),
		}}
	}

	if !InRollout(p, ctx.AlgoKey, ctx.RunID) {
		return false, []rcp.Note{{
			PolicyID: p.ID,
			Stage:    rcp.StageGate,
			Message:  fmt.Sprintf("not in rollout sample (%.0f%%)", p.RolloutPercent*100),
		}}
	}

	pass, notes := CheckGates(p, ctx)
	if !pass {
		for _, n := range notes {
			e.logger.Warn("policy excluded by gate", "policy_id", p.ID, "reason", n.Message)
		}
		return false, notes
	}

	return true, notes
}

// scopeMatches implements the scope check: global always matches,
// algorithm scope requires an exact algo key match, segment scope requires
// every non-empty selector list to intersect the corresponding context
// attribute.
func scopeMatches(p *rcp.Policy, ctx *rcp.EvaluationContext) bool {
	switch p.Scope {
	case rcp.ScopeGlobal:
		return true
	case rcp.ScopeAlgorithm:
		return p.AlgoKey == ctx.AlgoKey
	case rcp.ScopeSegment:
		return selectorMatches(p.Selector, ctx)
	default:
		return false
	}
}

func selectorMatches(sel *rcp.Selector, ctx *rcp.EvaluationContext) bool {
	if sel.IsEmpty() {
		return false
	}
	return listMatches(sel.Geos, ctx.SegmentValues(rcp.SegmentGeo)) &&
		listMatches(sel.Devices, ctx.SegmentValues(rcp.SegmentDevice)) &&
		listMatches(sel.Sources, ctx.SegmentValues(rcp.SegmentSource)) &&
		listMatches(sel.DestinationIDs, ctx.SegmentValues(rcp.SegmentDestinationID))
}

// listMatches applies "empty selector list means don't care", otherwise
// requires a non-empty intersection with the context values.
func listMatches(want, have []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if w == h {
				return true
			}
		}
	}
	return false
}
