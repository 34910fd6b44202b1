// Package mutate implements the per-policy rewrite pipeline that runs
// before guard checks: required-field verification, range clamping, and
// delta limiting against a field's previous value.
//
// Rules apply in registration order. A failed required-field check blocks
// the action immediately and short-circuits the remaining rules; clamps
// and delta limits rewrite the action in place and record a note per
// rewrite.
package mutate
