// Package audit defines the append-only evaluation record model and the
// storage contract it persists through.
//
// One record is written per applicable policy per evaluated batch,
// capturing what the policy saw (counts by verdict, risk cost, duration)
// and what it changed (before/after action snapshots). Records are never
// updated or deleted by the engine; retention pruning is the only path
// that removes them.
package audit
