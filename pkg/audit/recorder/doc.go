// Package recorder turns evaluation results into audit records and writes
// them through an audit.Storage backend.
//
// Writes are synchronous by design: the audit trail must reflect exactly
// what was allowed versus changed before the runner executes anything, so
// the recorder retries a failed batch write once and then returns the
// failure to the caller instead of buffering and dropping.
package recorder
