package limiter

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process limiter backend: per-key slices of admission
// timestamps behind a single mutex. Entries older than the window are
// pruned on every check so the store never grows unbounded.
//
// Safe for concurrent ticks within one process. Deployments running
// multiple instances need the SQLite backend (or another shared store) or
// each instance silently gets its own budget.
type Memory struct {
	mu         sync.Mutex
	admissions map[string][]time.Time
	now        func() time.Time
}

// NewMemory creates an in-process limiter.
func NewMemory() *Memory {
	return &Memory{
		admissions: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// CheckAndRecord implements Limiter.
func (m *Memory) CheckAndRecord(_ context.Context, key string, window time.Duration, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-window)

	kept := m.admissions[key][:0]
	for _, t := range m.admissions[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		m.admissions[key] = kept
		return false, nil
	}

	m.admissions[key] = append(kept, now)
	return true, nil
}

// Close implements Limiter.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admissions = make(map[string][]time.Time)
	return nil
}
