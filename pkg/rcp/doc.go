// Package rcp defines the data model for the Runtime Control Policy engine:
// policies, proposed actions, evaluation contexts, and evaluation results.
//
// A Policy is an immutable-per-version rule set that governs automated
// traffic actions. It combines applicability gates (scope, schedule,
// rollout sampling, metric conditions), a mutation pipeline (clamps and
// delta limits), hard guards (ceilings that veto an action), soft guards
// (advisory flags that are recorded but never block), and a rate-limit
// window.
//
// Guard, gate, and mutation rules are a closed set of tagged variants.
// Malformed or unknown rule shapes are rejected by Validate at load time
// rather than surfacing as evaluation-time surprises.
//
// Actions and evaluation results are transient: they are created fresh for
// each runner tick and never mutated after the tick completes.
package rcp
