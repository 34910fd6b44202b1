package audit

import (
	"context"
	"time"

	"trafficgate/saturn/pkg/rcp"
)

// Record is one append-only audit row: the contribution of one policy to
// one evaluated batch.
type Record struct {
	// ID is a UUID assigned by the recorder.
	ID string `json:"id"`

	// PolicyID and PolicyVersion identify the exact policy version that
	// evaluated the batch.
	PolicyID      string `json:"policy_id"`
	PolicyVersion int    `json:"policy_version"`

	// AlgoKey and RunID tie the record back to the runner tick.
	AlgoKey string `json:"algo_key"`
	RunID   string `json:"run_id"`

	// Result is the per-policy outcome: allowed, modified, blocked, or
	// mixed.
	Result rcp.BatchResult `json:"result"`

	// Stats aggregates the policy's verdict counts and cost.
	Stats Stats `json:"stats"`

	// Diffs holds before/after snapshots for every action the policy
	// rewrote or blocked.
	Diffs []rcp.ActionDiff `json:"diffs,omitempty"`

	// CreatedAt is the write time.
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates one policy's view of a batch.
type Stats struct {
	AllowedCount  int           `json:"allowed_count"`
	ModifiedCount int           `json:"modified_count"`
	BlockedCount  int           `json:"blocked_count"`
	NoteCount     int           `json:"note_count"`
	RiskCost      float64       `json:"risk_cost"`
	Duration      time.Duration `json:"duration"`
}

// Query filters and paginates record listings.
type Query struct {
	// Filters. Zero values mean "no filter".
	PolicyID string          `json:"policy_id,omitempty"`
	AlgoKey  string          `json:"algo_key,omitempty"`
	RunID    string          `json:"run_id,omitempty"`
	Result   rcp.BatchResult `json:"result,omitempty"`

	// StartTime and EndTime bound CreatedAt, both inclusive.
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Limit caps returned rows; zero applies DefaultQueryLimit. Offset
	// skips rows for pagination.
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder is "desc" (default, newest first) or "asc".
	SortOrder string `json:"sort_order,omitempty"`
}

// DefaultQueryLimit caps listings when the caller does not set one.
const DefaultQueryLimit = 100

// Validate checks the query's shape.
func (q *Query) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return &QueryError{Reason: "limit and offset must be non-negative"}
	}
	if q.StartTime != nil && q.EndTime != nil && q.EndTime.Before(*q.StartTime) {
		return &QueryError{Reason: "end_time before start_time"}
	}
	switch q.SortOrder {
	case "", "asc", "desc":
	default:
		return &QueryError{Reason: "sort_order must be asc or desc"}
	}
	switch q.Result {
	case "", rcp.BatchAllowed, rcp.BatchModified, rcp.BatchBlocked, rcp.BatchMixed:
	default:
		return &QueryError{Reason: "unknown result filter"}
	}
	return nil
}

// EffectiveLimit returns the limit with the default applied.
func (q *Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultQueryLimit
	}
	return q.Limit
}

// AggregateStats summarizes records matching a query.
type AggregateStats struct {
	// Records counts matching audit rows, total and per result type.
	Records         int                     `json:"records"`
	RecordsByResult map[rcp.BatchResult]int `json:"records_by_result"`

	// Action totals across matching records, by verdict.
	ActionsAllowed  int `json:"actions_allowed"`
	ActionsModified int `json:"actions_modified"`
	ActionsBlocked  int `json:"actions_blocked"`

	// Risk cost across matching records.
	TotalRiskCost   float64 `json:"total_risk_cost"`
	AverageRiskCost float64 `json:"average_risk_cost"`
}

// Storage is the persistence contract for audit records. Implementations
// must make WriteBatch atomic: either every record of a batch lands or
// none do, so a half-audited batch can never exist.
type Storage interface {
	// WriteBatch appends all records in one transaction.
	WriteBatch(ctx context.Context, records []*Record) error

	// List returns records matching the query, paginated and sorted by
	// CreatedAt.
	List(ctx context.Context, q Query) ([]*Record, error)

	// Count returns the number of records matching the query, ignoring
	// pagination.
	Count(ctx context.Context, q Query) (int, error)

	// Aggregate computes summary statistics over records matching the
	// query, ignoring pagination.
	Aggregate(ctx context.Context, q Query) (*AggregateStats, error)

	// DeleteBefore removes records created before the cutoff and returns
	// how many were removed. Retention pruning only.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// TrimToCount removes the oldest records until at most max remain and
	// returns how many were removed. Retention pruning only.
	TrimToCount(ctx context.Context, max int) (int64, error)

	// Close releases backing resources.
	Close() error
}
