package gate

import (
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultScheduleTolerance is the window around a scheduled occurrence
// inside which a cron-restricted policy applies.
const DefaultScheduleTolerance = 5 * time.Minute

// Schedule answers "is this timestamp within the tolerance window of a
// recurring cron schedule". It exists as its own type so the boundary
// semantics are testable independent of the evaluator.
type Schedule struct {
	tolerance time.Duration
}

// NewSchedule creates a schedule matcher with the given tolerance.
// A non-positive tolerance falls back to DefaultScheduleTolerance.
func NewSchedule(tolerance time.Duration) *Schedule {
	if tolerance <= 0 {
		tolerance = DefaultScheduleTolerance
	}
	return &Schedule{tolerance: tolerance}
}

// Tolerance returns the configured tolerance window.
func (s *Schedule) Tolerance() time.Duration { return s.tolerance }

// InWindow reports whether t falls within the tolerance window of an
// occurrence of the standard cron expression spec. An empty spec always
// matches. A malformed spec matches too (fail-open) and reports the parse
// error so the caller can log a configuration warning.
func (s *Schedule) InWindow(spec string, t time.Time) (bool, error) {
	if spec == "" {
		return true, nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return true, err
	}

	// An occurrence within tolerance of t exists iff the first occurrence
	// strictly after t-tolerance is at or before t+tolerance. Next is
	// exclusive of its argument, so nudge the lower bound back by a tick.
	next := sched.Next(t.Add(-s.tolerance).Add(-time.Second))
	return !next.After(t.Add(s.tolerance)), nil
}

// ValidateSpec reports whether a cron expression parses. Policy loaders
// use this to warn at load time instead of at evaluation time.
func ValidateSpec(spec string) error {
	if spec == "" {
		return nil
	}
	_, err := cron.ParseStandard(spec)
	return err
}
