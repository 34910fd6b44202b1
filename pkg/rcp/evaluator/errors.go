package evaluator

import "fmt"

// RecordError wraps an audit persistence failure. The evaluation itself
// succeeded; callers get the computed result together with this error and
// decide whether to retry the tick or proceed without audit.
type RecordError struct {
	RunID string
	Cause error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("recording evaluation for run %q: %v", e.RunID, e.Cause)
}

func (e *RecordError) Unwrap() error { return e.Cause }
