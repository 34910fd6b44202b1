package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSpoolFile(t *testing.T, algo *SpoolAlgorithm, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(algo.dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write spool file: %v", err)
	}
}

func fileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

// TestSpool_ConsumesOldestAndParks tests that ticks drain the spool in
// file-name order and park consumed files with a .done suffix.
func TestSpool_ConsumesOldestAndParks(t *testing.T) {
	algo, err := NewSpoolAlgorithm(t.TempDir(), "geo-optimizer")
	if err != nil {
		t.Fatalf("NewSpoolAlgorithm() failed: %v", err)
	}
	writeSpoolFile(t, algo, "001-batch.yaml", `actions:
  - id: act-1
    type: reweight
    algo_key: geo-optimizer
    data:
      weight: 0.55
metrics:
  roi.daily: 2.0
`)
	writeSpoolFile(t, algo, "002-batch.yaml", `actions:
  - id: act-2
    type: pause
    algo_key: geo-optimizer
    data: {}
`)

	input, err := algo.Propose(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Propose() failed: %v", err)
	}
	if len(input.Actions) != 1 || input.Actions[0].ID != "act-1" {
		t.Fatalf("Expected the oldest batch (act-1), got %+v", input.Actions)
	}
	if v, ok := input.Metrics["roi.daily"]; !ok || v != 2.0 {
		t.Errorf("Metrics did not round-trip: %+v", input.Metrics)
	}
	if !fileExists(t, filepath.Join(algo.dir, "001-batch.yaml.done")) {
		t.Error("Consumed file should be parked with a .done suffix")
	}
	if !fileExists(t, filepath.Join(algo.dir, "002-batch.yaml")) {
		t.Error("Later batch should still be pending")
	}

	input, err = algo.Propose(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Second Propose() failed: %v", err)
	}
	if len(input.Actions) != 1 || input.Actions[0].ID != "act-2" {
		t.Errorf("Expected the second batch (act-2), got %+v", input.Actions)
	}
}

// TestSpool_IdleIsEmpty tests that an empty spool yields an empty input,
// not an error.
func TestSpool_IdleIsEmpty(t *testing.T) {
	algo, err := NewSpoolAlgorithm(t.TempDir(), "geo-optimizer")
	if err != nil {
		t.Fatalf("NewSpoolAlgorithm() failed: %v", err)
	}

	input, err := algo.Propose(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Propose() on an idle spool failed: %v", err)
	}
	if len(input.Actions) != 0 {
		t.Errorf("Expected an empty input, got %d actions", len(input.Actions))
	}
}

// TestSpool_MalformedFileParkedAsError tests that an unparseable batch is
// moved aside so it cannot wedge the spool.
func TestSpool_MalformedFileParkedAsError(t *testing.T) {
	algo, err := NewSpoolAlgorithm(t.TempDir(), "geo-optimizer")
	if err != nil {
		t.Fatalf("NewSpoolAlgorithm() failed: %v", err)
	}
	writeSpoolFile(t, algo, "bad.yaml", "actions: [unterminated")

	if _, err := algo.Propose(context.Background(), time.Now()); err == nil {
		t.Fatal("Propose() should surface the parse failure")
	}
	if !fileExists(t, filepath.Join(algo.dir, "bad.yaml.error")) {
		t.Error("Malformed file should be parked with a .error suffix")
	}

	input, err := algo.Propose(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Spool should recover after parking, got: %v", err)
	}
	if len(input.Actions) != 0 {
		t.Errorf("Expected an empty input after recovery, got %d actions", len(input.Actions))
	}
}

// TestDiscoverSpoolAlgorithms tests that each spool subdirectory becomes
// one algorithm and that a missing spool root is not an error.
func TestDiscoverSpoolAlgorithms(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{"geo-optimizer", "device-optimizer"} {
		if err := os.MkdirAll(filepath.Join(dir, key), 0o755); err != nil {
			t.Fatalf("Failed to create spool subdir: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write stray file: %v", err)
	}

	algos, err := DiscoverSpoolAlgorithms(dir)
	if err != nil {
		t.Fatalf("DiscoverSpoolAlgorithms() failed: %v", err)
	}
	if len(algos) != 2 {
		t.Fatalf("Expected 2 algorithms, got %d", len(algos))
	}

	keys := map[string]bool{}
	for _, a := range algos {
		keys[a.Key()] = true
	}
	if !keys["geo-optimizer"] || !keys["device-optimizer"] {
		t.Errorf("Unexpected algorithm keys: %v", keys)
	}

	missing, err := DiscoverSpoolAlgorithms(filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatalf("Missing spool root should not error, got: %v", err)
	}
	if missing != nil {
		t.Errorf("Missing spool root should yield no algorithms, got %d", len(missing))
	}
}
