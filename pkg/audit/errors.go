package audit

import "fmt"

// StorageError wraps a storage backend failure.
type StorageError struct {
	Backend string
	Op      string
	Cause   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s: %s: %v", e.Backend, e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// NewStorageError constructs a StorageError.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}

// RecorderError reports that a batch's audit records could not be
// persisted, including after retry. Recoverable: the evaluation result is
// intact, the caller decides whether to retry the tick.
type RecorderError struct {
	RunID   string
	Records int
	Cause   error
}

func (e *RecorderError) Error() string {
	return fmt.Sprintf("audit recorder: %d records for run %q not persisted: %v", e.Records, e.RunID, e.Cause)
}

func (e *RecorderError) Unwrap() error { return e.Cause }

// QueryError reports a malformed record query.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return "invalid audit query: " + e.Reason
}
