package guard

import (
	"fmt"
	"math"

	"trafficgate/saturn/pkg/rcp"
)

// Violation describes a hard guard an action tripped.
type Violation struct {
	// Guard names the ceiling that fired.
	Guard string

	// Reason is the human-readable explanation recorded in notes.
	Reason string

	// Overflow is how far past the ceiling the action landed, where the
	// guard has a meaningful overflow amount (risk ceiling).
	Overflow float64
}

// CheckAction runs the per-action hard guards of a policy against an
// already-mutated action: the weight delta ceiling for reweight actions
// and the budget shift ceiling for budget actions. Returns the first
// violation, or nil.
func CheckAction(p *rcp.Policy, action *rcp.Action) *Violation {
	g := p.HardGuards

	if action.Type == rcp.ActionReweight && g.WeightDeltaMax > 0 {
		if w, ok := action.Number("weight"); ok {
			if prev, ok := action.Previous("weight"); ok {
				delta := math.Abs(w - prev)
				if delta > g.WeightDeltaMax {
					return &Violation{
						Guard:  "weight_delta_max",
						Reason: fmt.Sprintf("weight delta %v exceeds %v", round(delta), g.WeightDeltaMax),
					}
				}
			}
		}
	}

	if action.Type == rcp.ActionBudgetShift && g.BudgetShiftMaxPercent > 0 {
		if b, ok := action.Number("budget"); ok {
			if prev, ok := action.Previous("budget"); ok && prev > 0 {
				shift := math.Abs(b-prev) / prev
				if shift > g.BudgetShiftMaxPercent {
					return &Violation{
						Guard:  "budget_shift_max_percent",
						Reason: fmt.Sprintf("budget shift %.1f%% exceeds %.1f%%", shift*100, g.BudgetShiftMaxPercent*100),
					}
				}
			}
		}
	}

	return nil
}

// CheckBatchPosition enforces the per-batch action count ceiling.
// position is the 1-based index of the action within the batch.
func CheckBatchPosition(p *rcp.Policy, position int) *Violation {
	if max := p.HardGuards.MaxActionsPerTick; max > 0 && position > max {
		return &Violation{
			Guard:  "max_actions_per_tick",
			Reason: fmt.Sprintf("action %d exceeds batch ceiling of %d", position, max),
		}
	}
	return nil
}

// riskEpsilon absorbs float accumulation noise so a batch landing exactly
// on the ceiling is not blocked by the last bit of a sum.
const riskEpsilon = 1e-9

// CheckRiskCeiling enforces the cumulative risk ceiling: the action is
// charged first, and blocked when the running batch total would exceed the
// ceiling. Blocked actions are not charged, so a later cheaper action may
// still fit under the ceiling.
func CheckRiskCeiling(p *rcp.Policy, batchRisk, contribution float64) *Violation {
	ceiling := p.HardGuards.RiskCeilingPerTick
	if ceiling <= 0 {
		return nil
	}
	total := batchRisk + contribution
	if total > ceiling+riskEpsilon {
		return &Violation{
			Guard:    "risk_ceiling_per_tick",
			Reason:   fmt.Sprintf("cumulative risk %v exceeds ceiling %v", round(total), ceiling),
			Overflow: total - ceiling,
		}
	}
	return nil
}

// CheckSoftGuards evaluates the advisory flags. Violations come back as
// notes only; soft guards never block.
func CheckSoftGuards(p *rcp.Policy, action *rcp.Action, contribution float64) []rcp.Note {
	var notes []rcp.Note
	s := p.SoftGuards

	if s.RequireJustification && !action.Has("justification") {
		notes = append(notes, rcp.Note{
			PolicyID: p.ID,
			ActionID: action.ID,
			Stage:    rcp.StageGuard,
			Message:  "missing justification (advisory)",
		})
	}
	if s.RequirePlanID && !action.Has("plan_id") {
		notes = append(notes, rcp.Note{
			PolicyID: p.ID,
			ActionID: action.ID,
			Stage:    rcp.StageGuard,
			Message:  "missing plan_id (advisory)",
		})
	}
	if s.ApprovalThreshold > 0 && contribution >= s.ApprovalThreshold {
		notes = append(notes, rcp.Note{
			PolicyID: p.ID,
			ActionID: action.ID,
			Stage:    rcp.StageGuard,
			Message: fmt.Sprintf("risk %v meets approval threshold %v (advisory)",
				round(contribution), s.ApprovalThreshold),
		})
	}

	return notes
}

// round trims float noise out of reason strings (0.35000000000000003
// reads badly in an audit row).
func round(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
