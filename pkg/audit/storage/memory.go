package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"trafficgate/saturn/pkg/audit"
	"trafficgate/saturn/pkg/rcp"
)

// Memory is the in-memory audit store. Records live in a slice ordered by
// insertion; queries filter and paginate copies so callers can never
// mutate stored rows.
type Memory struct {
	mu      sync.RWMutex
	records []*audit.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// WriteBatch implements audit.Storage.
func (m *Memory) WriteBatch(_ context.Context, records []*audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		c := *r
		m.records = append(m.records, &c)
	}
	return nil
}

// List implements audit.Storage.
func (m *Memory) List(_ context.Context, q audit.Query) ([]*audit.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := m.filter(q)
	m.mu.RUnlock()

	asc := q.SortOrder == "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if q.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[q.Offset:]
	if limit := q.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*audit.Record, len(matched))
	for i, r := range matched {
		c := *r
		out[i] = &c
	}
	return out, nil
}

// Count implements audit.Storage.
func (m *Memory) Count(_ context.Context, q audit.Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filter(q)), nil
}

// Aggregate implements audit.Storage.
func (m *Memory) Aggregate(_ context.Context, q audit.Query) (*audit.AggregateStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := m.filter(q)
	m.mu.RUnlock()

	stats := &audit.AggregateStats{
		RecordsByResult: make(map[rcp.BatchResult]int),
	}
	for _, r := range matched {
		stats.Records++
		stats.RecordsByResult[r.Result]++
		stats.ActionsAllowed += r.Stats.AllowedCount
		stats.ActionsModified += r.Stats.ModifiedCount
		stats.ActionsBlocked += r.Stats.BlockedCount
		stats.TotalRiskCost += r.Stats.RiskCost
	}
	if stats.Records > 0 {
		stats.AverageRiskCost = stats.TotalRiskCost / float64(stats.Records)
	}
	return stats, nil
}

// DeleteBefore implements audit.Storage.
func (m *Memory) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// TrimToCount implements audit.Storage.
func (m *Memory) TrimToCount(_ context.Context, max int) (int64, error) {
	if max < 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) <= max {
		return 0, nil
	}

	// Records are appended in write order; the oldest sit at the front.
	sort.SliceStable(m.records, func(i, j int) bool {
		return m.records[i].CreatedAt.Before(m.records[j].CreatedAt)
	})
	deleted := int64(len(m.records) - max)
	m.records = append([]*audit.Record(nil), m.records[len(m.records)-max:]...)
	return deleted, nil
}

// Close implements audit.Storage.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

// filter returns the records matching the query's filters. Caller holds
// at least a read lock.
func (m *Memory) filter(q audit.Query) []*audit.Record {
	var matched []*audit.Record
	for _, r := range m.records {
		if q.PolicyID != "" && r.PolicyID != q.PolicyID {
			continue
		}
		if q.AlgoKey != "" && r.AlgoKey != q.AlgoKey {
			continue
		}
		if q.RunID != "" && r.RunID != q.RunID {
			continue
		}
		if q.Result != "" && r.Result != q.Result {
			continue
		}
		if q.StartTime != nil && r.CreatedAt.Before(*q.StartTime) {
			continue
		}
		if q.EndTime != nil && r.CreatedAt.After(*q.EndTime) {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}
