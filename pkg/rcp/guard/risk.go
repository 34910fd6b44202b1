package guard

import (
	"math"

	"trafficgate/saturn/pkg/rcp"
)

// Risk heuristic constants. The contribution is a fixed base plus
// per-type penalties, capped, so the score of an action never depends on
// the order actions are evaluated in.
const (
	RiskBase         = 0.1
	RiskWeightFactor = 2.0
	RiskBudgetFactor = 1.5
	RiskPausePenalty = 0.5
	RiskMax          = 2.0
)

// Score computes the deterministic risk contribution of a single action:
//
//	base 0.1
//	+ 2.0 x |weight delta|          (reweight)
//	+ 1.5 x |budget percent change| (budget_shift)
//	+ 0.5                           (pause)
//
// capped at 2.0. The score both feeds the per-batch risk ceiling guard and
// is summed into the batch's risk cost for every surviving action.
func Score(action *rcp.Action) float64 {
	score := RiskBase

	switch action.Type {
	case rcp.ActionReweight:
		if w, ok := action.Number("weight"); ok {
			if prev, ok := action.Previous("weight"); ok {
				score += RiskWeightFactor * math.Abs(w-prev)
			}
		}
	case rcp.ActionBudgetShift:
		if b, ok := action.Number("budget"); ok {
			if prev, ok := action.Previous("budget"); ok && prev != 0 {
				score += RiskBudgetFactor * math.Abs((b-prev)/prev)
			}
		}
	case rcp.ActionPause:
		score += RiskPausePenalty
	}

	return math.Min(score, RiskMax)
}
