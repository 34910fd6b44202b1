package mutate

import (
	"fmt"
	"math"

	"trafficgate/saturn/pkg/rcp"
)

// Outcome reports what one policy's mutation pipeline did to one action.
type Outcome struct {
	// Blocked is true when a required-field rule vetoed the action.
	Blocked bool

	// BlockReason explains the veto.
	BlockReason string

	// Changed is true when at least one field was rewritten.
	Changed bool

	// Notes records one entry per rewrite or veto, in rule order.
	Notes []rcp.Note
}

// Apply runs the policy's mutation rules against the action, in
// registration order, rewriting action.Data in place. Rules whose
// ActionType does not match the action are skipped. A required-field
// failure stops the pipeline immediately.
//
// Callers own the action's mutability: pass a clone when the original must
// survive (monitor mode does exactly that).
func Apply(p *rcp.Policy, action *rcp.Action) Outcome {
	var out Outcome

	for _, rule := range p.Mutations {
		if rule.ActionType != action.Type {
			continue
		}

		switch rule.Kind {
		case rcp.MutationRequireFields:
			for _, field := range rule.RequiredFields {
				if !action.Has(field) {
					out.Blocked = true
					out.BlockReason = fmt.Sprintf("required field %q missing", field)
					out.Notes = append(out.Notes, rcp.Note{
						PolicyID: p.ID,
						ActionID: action.ID,
						Stage:    rcp.StageMutation,
						Message:  out.BlockReason,
					})
					return out
				}
			}

		case rcp.MutationClamp:
			applyClamp(p, rule, action, &out)

		case rcp.MutationDeltaLimit:
			applyDeltaLimit(p, rule, action, &out)
		}
	}

	return out
}

func applyClamp(p *rcp.Policy, rule rcp.MutationRule, action *rcp.Action, out *Outcome) {
	v, ok := action.Number(rule.Field)
	if !ok {
		return
	}

	clamped := v
	switch {
	case v < rule.Min:
		clamped = rule.Min
	case v > rule.Max:
		clamped = rule.Max
	default:
		return
	}

	action.SetNumber(rule.Field, clamped)
	out.Changed = true
	out.Notes = append(out.Notes, rcp.Note{
		PolicyID: p.ID,
		ActionID: action.ID,
		Stage:    rcp.StageMutation,
		Message:  fmt.Sprintf("clamped %s from %v to %v (range [%v, %v])", rule.Field, v, clamped, rule.Min, rule.Max),
	})
}

func applyDeltaLimit(p *rcp.Policy, rule rcp.MutationRule, action *rcp.Action, out *Outcome) {
	v, ok := action.Number(rule.Field)
	if !ok {
		return
	}
	prev, ok := action.Previous(rule.Field)
	if !ok {
		return
	}

	delta := v - prev
	if math.Abs(delta) <= rule.MaxDelta {
		return
	}

	// Clamp to previous ± maxDelta, preserving direction.
	limited := prev + math.Copysign(rule.MaxDelta, delta)
	action.SetNumber(rule.Field, limited)
	out.Changed = true
	out.Notes = append(out.Notes, rcp.Note{
		PolicyID: p.ID,
		ActionID: action.ID,
		Stage:    rcp.StageMutation,
		Message: fmt.Sprintf("limited %s delta %v to %v: %v -> %v",
			rule.Field, math.Abs(delta), rule.MaxDelta, v, limited),
	})
}
