package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// SpoolAlgorithm reads tick inputs from a per-algorithm spool directory.
// External optimizers drop one YAML file per proposed batch into
// <dir>/<algo-key>/; each tick consumes the oldest pending file. A
// consumed file is renamed with a ".done" suffix so a crashed tick never
// silently loses a batch.
type SpoolAlgorithm struct {
	dir    string
	key    string
	logger *slog.Logger
}

// NewSpoolAlgorithm creates a spool algorithm for one key. The spool
// directory is created if missing.
func NewSpoolAlgorithm(spoolDir, key string) (*SpoolAlgorithm, error) {
	dir := filepath.Join(spoolDir, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir %q: %w", dir, err)
	}
	return &SpoolAlgorithm{
		dir:    dir,
		key:    key,
		logger: slog.Default().With("component", "runner.spool", "algo_key", key),
	}, nil
}

// Key implements Algorithm.
func (s *SpoolAlgorithm) Key() string {
	return s.key
}

// Propose implements Algorithm. It consumes the oldest pending batch
// file, or returns an empty input when the spool is idle.
func (s *SpoolAlgorithm) Propose(ctx context.Context, now time.Time) (*TickInput, error) {
	path, err := s.oldestPending()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return &TickInput{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spool file %q: %w", path, err)
	}

	input := &TickInput{}
	if err := yaml.Unmarshal(data, input); err != nil {
		// Park the unparseable file so it does not wedge the spool.
		s.park(path, ".error")
		return nil, fmt.Errorf("parse spool file %q: %w", path, err)
	}

	s.park(path, ".done")
	s.logger.Debug("spool batch consumed", "path", path, "actions", len(input.Actions))
	return input, nil
}

func (s *SpoolAlgorithm) oldestPending() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("read spool dir %q: %w", s.dir, err)
	}

	var pending []string
	for _, e := range entries {
		if e.IsDir() || !isPolicyFile(e.Name()) {
			continue
		}
		pending = append(pending, e.Name())
	}
	if len(pending) == 0 {
		return "", nil
	}
	sort.Strings(pending)
	return filepath.Join(s.dir, pending[0]), nil
}

func (s *SpoolAlgorithm) park(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		s.logger.Error("failed to park spool file", "path", path, "error", err)
	}
}

// DiscoverSpoolAlgorithms creates one SpoolAlgorithm per subdirectory of
// spoolDir. Used when the configuration does not name algorithms
// explicitly.
func DiscoverSpoolAlgorithms(spoolDir string) ([]Algorithm, error) {
	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spool dir %q: %w", spoolDir, err)
	}

	var algos []Algorithm
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		algo, err := NewSpoolAlgorithm(spoolDir, e.Name())
		if err != nil {
			return nil, err
		}
		algos = append(algos, algo)
	}
	return algos, nil
}
