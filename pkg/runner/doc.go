// Package runner drives the evaluation loop: one periodic tick per
// registered algorithm, each tick proposing candidate actions, evaluating
// them against the active policies, executing the survivors, and logging
// run metadata (authority, risk spent, whether evaluation was bypassed).
//
// Ticks for different algorithms run concurrently; the shared limiter and
// audit storage are the synchronization points, the evaluator itself is
// stateless. Policies arrive through a PolicySource, normally the
// YAML-directory FileSource with hot reload.
package runner
