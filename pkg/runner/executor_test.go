package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"trafficgate/saturn/pkg/rcp"
)

func readOutbox(t *testing.T, path string) []outboxEntry {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open outbox: %v", err)
	}
	defer f.Close()

	var entries []outboxEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e outboxEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("Outbox line is not valid JSON: %v", err)
		}
		entries = append(entries, e)
	}
	return entries
}

// TestOutboxExecutor_AppendsJSONLines tests that each executed action
// becomes one JSON line carrying the action and its idempotency key.
func TestOutboxExecutor_AppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")
	exec, err := NewOutboxExecutor(path)
	if err != nil {
		t.Fatalf("NewOutboxExecutor() failed: %v", err)
	}

	actions := []*rcp.Action{
		{ID: "act-1", Type: rcp.ActionReweight, AlgoKey: "geo-optimizer",
			IdempotencyKey: "idem-1", Data: map[string]any{"weight": 0.5}},
		{ID: "act-2", Type: rcp.ActionPause, AlgoKey: "geo-optimizer",
			IdempotencyKey: "idem-2", Data: map[string]any{}},
	}
	for _, a := range actions {
		if err := exec.Execute(context.Background(), a); err != nil {
			t.Fatalf("Execute() failed: %v", err)
		}
	}
	if err := exec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	entries := readOutbox(t, path)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 outbox lines, got %d", len(entries))
	}
	if entries[0].Action.ID != "act-1" || entries[0].Action.IdempotencyKey != "idem-1" {
		t.Errorf("First entry corrupted: %+v", entries[0].Action)
	}
	if entries[0].ExecutedAt.IsZero() {
		t.Error("Entries should carry an execution timestamp")
	}
	if w, ok := entries[0].Action.Number("weight"); !ok || w != 0.5 {
		t.Errorf("Action data did not round-trip: %+v", entries[0].Action.Data)
	}
}

// TestOutboxExecutor_AppendsAcrossReopen tests that a restart keeps
// appending instead of truncating the outbox.
func TestOutboxExecutor_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outbox.jsonl")

	for i, id := range []string{"act-1", "act-2"} {
		exec, err := NewOutboxExecutor(path)
		if err != nil {
			t.Fatalf("NewOutboxExecutor() open %d failed: %v", i, err)
		}
		action := &rcp.Action{ID: id, Type: rcp.ActionReweight, AlgoKey: "geo-optimizer"}
		if err := exec.Execute(context.Background(), action); err != nil {
			t.Fatalf("Execute() failed: %v", err)
		}
		if err := exec.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
	}

	entries := readOutbox(t, path)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 outbox lines after reopen, got %d", len(entries))
	}
	if entries[1].Action.ID != "act-2" {
		t.Errorf("Second line = %+v, want act-2", entries[1].Action)
	}
}

// TestLogExecutor_AlwaysSucceeds tests the log-only executor.
func TestLogExecutor_AlwaysSucceeds(t *testing.T) {
	exec := NewLogExecutor(nil)
	action := &rcp.Action{ID: "act-1", Type: rcp.ActionReweight, AlgoKey: "geo-optimizer"}
	if err := exec.Execute(context.Background(), action); err != nil {
		t.Errorf("Execute() failed: %v", err)
	}
}
