// Package gate decides whether a policy applies to an evaluation context.
//
// Applicability is the conjunction of six checks: enabled, not expired,
// scope match, schedule window, deterministic rollout sample, and metric
// gate conditions. The checks are pure functions of the policy and the
// context; repeated calls with the same inputs always return the same
// answer, which is what makes rollout sampling idempotent.
//
// Two deliberate failure-direction choices live here. A malformed cron
// expression fails open (the policy stays in schedule) with a warning note,
// because disabling governance over a typo is worse than over-applying it.
// A gate condition referencing a metric absent from the context fails
// closed (the policy is excluded) with a warning note, so a silently
// missing feed never leaves a gate vacuously true.
package gate
