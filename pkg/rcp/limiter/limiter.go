package limiter

import (
	"context"
	"time"
)

// Limiter is the admission check the evaluator runs for rate-limited
// policies.
//
// CheckAndRecord atomically prunes entries older than window, compares the
// remaining count against limit, and either records a new admission
// (returning true) or rejects without recording (returning false).
// Given limit N and N+1 calls inside one window for the same key, exactly
// the first N are admitted.
type Limiter interface {
	// CheckAndRecord admits or rejects one action for the given key.
	// Errors are infrastructure failures (storage), not rejections.
	CheckAndRecord(ctx context.Context, key string, window time.Duration, limit int) (bool, error)

	// Close releases backing resources.
	Close() error
}

// Key builds the canonical limiter key for a policy/algorithm pair. The
// dimension distinguishes independent windows sharing the pair (action
// admissions vs daily pause counting).
func Key(dimension, policyID, algoKey string) string {
	return dimension + "|" + policyID + "|" + algoKey
}
