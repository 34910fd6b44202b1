package gate

import (
	"fmt"

	"trafficgate/saturn/pkg/rcp"
)

// CheckGates evaluates a policy's gate conditions against the context's
// live metrics. All gates must hold for the policy to apply.
//
// A gate referencing a metric absent from the context fails closed: the
// policy is excluded and the returned note explains which path was
// missing. The inherited alternative (treating the condition as false
// without comment) hid exactly the case where a dead metric feed silently
// removed guard coverage.
func CheckGates(p *rcp.Policy, ctx *rcp.EvaluationContext) (bool, []rcp.Note) {
	var notes []rcp.Note

	for i, g := range p.Gates {
		left, ok := ctx.MetricValue(g.Left)
		if !ok {
			notes = append(notes, rcp.Note{
				PolicyID: p.ID,
				Stage:    rcp.StageGate,
				Message:  fmt.Sprintf("gate %d: metric %q absent from context, excluding policy", i, g.Left),
			})
			return false, notes
		}

		right, ok, src := rightOperand(g, ctx)
		if !ok {
			notes = append(notes, rcp.Note{
				PolicyID: p.ID,
				Stage:    rcp.StageGate,
				Message:  fmt.Sprintf("gate %d: metric %q absent from context, excluding policy", i, src),
			})
			return false, notes
		}

		if !compare(left, g.Op, right) {
			notes = append(notes, rcp.Note{
				PolicyID: p.ID,
				Stage:    rcp.StageGate,
				Message:  fmt.Sprintf("gate %d: %s (%v) %s %v does not hold", i, g.Left, left, g.Op, right),
			})
			return false, notes
		}
	}

	return true, notes
}

// rightOperand resolves the gate's right side: a constant or a metric
// path, scaled by Factor. The third return names the metric path when
// resolution failed.
func rightOperand(g rcp.Gate, ctx *rcp.EvaluationContext) (float64, bool, string) {
	factor := g.Factor
	if factor == 0 {
		factor = 1
	}
	if g.Value != nil {
		return *g.Value * factor, true, ""
	}
	v, ok := ctx.MetricValue(g.Metric)
	if !ok {
		return 0, false, g.Metric
	}
	return v * factor, true, ""
}

func compare(left float64, op rcp.CompareOp, right float64) bool {
	switch op {
	case rcp.OpGreaterThan:
		return left > right
	case rcp.OpGreaterEqual:
		return left >= right
	case rcp.OpLessThan:
		return left < right
	case rcp.OpLessEqual:
		return left <= right
	case rcp.OpEqual:
		return left == right
	case rcp.OpNotEqual:
		return left != right
	default:
		return false
	}
}
