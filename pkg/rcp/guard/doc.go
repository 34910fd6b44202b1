// Package guard implements the hard ceilings that can veto an action and
// the deterministic risk heuristic that feeds the per-batch risk budget.
//
// Guards are pure checks: they inspect the (already mutated) action and
// return a violation with a human-readable reason, or nil. Whether a
// violation blocks the action or is downgraded to a note is the
// evaluator's call, since monitor-mode policies never block.
package guard
