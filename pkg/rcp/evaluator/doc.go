// Package evaluator composes gates, mutations, guards, and the rate
// limiter into the per-batch evaluation entrypoint.
//
// Each action moves through a small state machine, Pending to one of
// Allowed, Modified, or Blocked, with Blocked terminal: once any policy
// vetoes an action, remaining policies never see it. Policies apply in
// ascending priority (ties broken by ID), so which guard fires first, and
// therefore which note lands in the audit trail, never depends on input
// ordering.
//
// The evaluation itself is a pure, synchronous computation; the only I/O
// is the final audit write, which is optional (preview evaluations pass a
// nil recorder) and whose failure is returned to the caller alongside the
// computed result, never swallowed.
package evaluator
