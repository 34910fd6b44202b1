package rcp

// ActionType classifies a proposed mutation of production traffic state.
type ActionType string

const (
	// ActionReweight changes a destination's traffic weight. Data carries
	// "weight" and "previous_weight".
	ActionReweight ActionType = "reweight"

	// ActionBudgetShift moves spend between budgets. Data carries "budget"
	// and "previous_budget".
	ActionBudgetShift ActionType = "budget_shift"

	// ActionPause stops traffic to a destination.
	ActionPause ActionType = "pause"
)

// PreviousFieldPrefix is the naming convention for a field's pre-action
// value inside Action.Data, e.g. "previous_weight" for "weight".
const PreviousFieldPrefix = "previous_"

// Action is a single proposed change produced by a traffic-optimization
// algorithm. Actions are transient: created fresh per tick, evaluated,
// then either executed or discarded.
type Action struct {
	// ID identifies the action within its batch.
	ID string `yaml:"id" json:"id"`

	// Type classifies the action.
	Type ActionType `yaml:"type" json:"type"`

	// AlgoKey names the algorithm that proposed the action.
	AlgoKey string `yaml:"algo_key" json:"algo_key"`

	// IdempotencyKey lets executors retry safely.
	IdempotencyKey string `yaml:"idempotency_key,omitempty" json:"idempotency_key,omitempty"`

	// Data holds the named numeric and string fields of the action,
	// including the field being mutated and its previous value.
	Data map[string]any `yaml:"data" json:"data"`

	// RiskScore is the algorithm's pre-evaluation risk estimate. The
	// evaluator computes its own contribution; this value is advisory.
	RiskScore float64 `yaml:"risk_score,omitempty" json:"risk_score,omitempty"`
}

// Number returns the named data field as a float64. Integer and float
// values both convert; anything else reports ok=false.
func (a *Action) Number(field string) (float64, bool) {
	if a.Data == nil {
		return 0, false
	}
	return toNumber(a.Data[field])
}

// Previous returns the "previous_<field>" companion value.
func (a *Action) Previous(field string) (float64, bool) {
	return a.Number(PreviousFieldPrefix + field)
}

// Has reports whether the named data field is present.
func (a *Action) Has(field string) bool {
	if a.Data == nil {
		return false
	}
	_, ok := a.Data[field]
	return ok
}

// SetNumber sets the named data field to a numeric value.
func (a *Action) SetNumber(field string, v float64) {
	if a.Data == nil {
		a.Data = make(map[string]any)
	}
	a.Data[field] = v
}

// Clone returns a deep copy of the action. The evaluator mutates only
// clones so callers' inputs survive a batch untouched.
func (a *Action) Clone() *Action {
	c := *a
	if a.Data != nil {
		c.Data = make(map[string]any, len(a.Data))
		for k, v := range a.Data {
			c.Data[k] = v
		}
	}
	return &c
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}
