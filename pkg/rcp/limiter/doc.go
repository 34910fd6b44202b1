// Package limiter provides the sliding-window admission limiter the
// evaluator consults before admitting an action under a rate-limited
// policy.
//
// The limiter is an injected service behind a single CheckAndRecord
// method rather than an ad-hoc map inside the evaluator, so concurrent
// ticks share one synchronized store and a multi-instance deployment can
// swap in the SQLite backend (or any other shared atomic counter) without
// touching evaluation logic.
package limiter
