package retention

import (
	"context"
	"testing"
	"time"

	"trafficgate/saturn/pkg/audit"
	"trafficgate/saturn/pkg/audit/storage"
	"trafficgate/saturn/pkg/rcp"
)

func seedAgedRecords(t *testing.T, store audit.Storage, now time.Time) {
	t.Helper()

	records := []*audit.Record{
		{ID: "old-1", PolicyID: "weight-guard", AlgoKey: "geo-optimizer", RunID: "run-1",
			Result: rcp.BatchAllowed, CreatedAt: now.AddDate(0, 0, -120)},
		{ID: "old-2", PolicyID: "weight-guard", AlgoKey: "geo-optimizer", RunID: "run-2",
			Result: rcp.BatchAllowed, CreatedAt: now.AddDate(0, 0, -95)},
		{ID: "recent-1", PolicyID: "weight-guard", AlgoKey: "geo-optimizer", RunID: "run-3",
			Result: rcp.BatchBlocked, CreatedAt: now.AddDate(0, 0, -5)},
		{ID: "recent-2", PolicyID: "budget-guard", AlgoKey: "geo-optimizer", RunID: "run-4",
			Result: rcp.BatchMixed, CreatedAt: now.Add(-time.Hour)},
	}
	if err := store.WriteBatch(context.Background(), records); err != nil {
		t.Fatalf("WriteBatch() failed: %v", err)
	}
}

// TestPrune_AgeBased tests that records older than RetentionDays are
// deleted and newer ones survive.
func TestPrune_AgeBased(t *testing.T) {
	store := storage.NewMemory()
	defer store.Close()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	seedAgedRecords(t, store, now)

	pruner := NewPruner(store, Config{RetentionDays: 90})
	pruner.now = func() time.Time { return now }

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() = %d, want 2 (both records past 90 days)", deleted)
	}

	n, _ := store.Count(context.Background(), audit.Query{})
	if n != 2 {
		t.Errorf("Count after prune = %d, want 2", n)
	}
}

// TestPrune_CountBased tests the MaxRecords trim keeps the newest rows.
func TestPrune_CountBased(t *testing.T) {
	store := storage.NewMemory()
	defer store.Close()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	seedAgedRecords(t, store, now)

	pruner := NewPruner(store, Config{MaxRecords: 1})
	pruner.now = func() time.Time { return now }

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Prune() = %d, want 3", deleted)
	}

	records, _ := store.List(context.Background(), audit.Query{})
	if len(records) != 1 || records[0].ID != "recent-2" {
		t.Errorf("Trim should keep the newest record, got %+v", records)
	}
}

// TestPrune_BothDisabled tests that zero config values delete nothing.
func TestPrune_BothDisabled(t *testing.T) {
	store := storage.NewMemory()
	defer store.Close()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	seedAgedRecords(t, store, now)

	pruner := NewPruner(store, Config{})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Prune() = %d, want 0 with retention disabled", deleted)
	}

	n, _ := store.Count(context.Background(), audit.Query{})
	if n != 4 {
		t.Errorf("Count = %d, want all 4 records intact", n)
	}
}

// TestPrune_AgeThenTrim tests that both stages run in one cycle and the
// returned total covers both.
func TestPrune_AgeThenTrim(t *testing.T) {
	store := storage.NewMemory()
	defer store.Close()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	seedAgedRecords(t, store, now)

	pruner := NewPruner(store, Config{RetentionDays: 90, MaxRecords: 1})
	pruner.now = func() time.Time { return now }

	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Prune() = %d, want 3 (2 aged out, 1 trimmed)", deleted)
	}
}
