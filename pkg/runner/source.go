package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"trafficgate/saturn/pkg/rcp"
	"trafficgate/saturn/pkg/rcp/gate"
)

// PolicySource hands the runner its active policy set.
type PolicySource interface {
	// Policies returns the current snapshot. The returned slice is owned
	// by the caller; the source never mutates it afterwards.
	Policies() []*rcp.Policy
}

// StaticSource is a fixed policy set, used by previews and tests.
type StaticSource []*rcp.Policy

// Policies implements PolicySource.
func (s StaticSource) Policies() []*rcp.Policy {
	out := make([]*rcp.Policy, len(s))
	copy(out, s)
	return out
}

// FileSource loads policies from YAML files in a directory and can watch
// the directory for changes, atomically swapping the active set on every
// successful reload. A reload that fails validation keeps the previous
// set active, so a bad edit never drops governance.
type FileSource struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	policies []*rcp.Policy

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
	stopCh  chan struct{}
}

// NewFileSource creates a source over dir and performs the initial load.
func NewFileSource(dir string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileSource{
		dir:    dir,
		logger: logger.With("component", "runner.policysource"),
		stopCh: make(chan struct{}),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policies implements PolicySource.
func (s *FileSource) Policies() []*rcp.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*rcp.Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

// Reload re-reads the directory, validates every policy, and swaps the
// active set. On any error the previous set stays active.
func (s *FileSource) Reload() error {
	policies, err := LoadPolicyDir(s.dir, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.policies = policies
	s.mu.Unlock()

	s.logger.Info("policies loaded", "dir", s.dir, "count", len(policies))
	return nil
}

// Watch starts the fsnotify watcher. Change events trigger a reload;
// reload failures are logged and the previous policy set stays active.
// The watcher stops when ctx is cancelled or Close is called.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch policy dir %q: %w", s.dir, err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !isPolicyFile(event.Name) {
					continue
				}
				s.logger.Info("policy file changed", "op", event.Op.String(), "path", event.Name)
				if err := s.Reload(); err != nil {
					s.logger.Error("policy reload failed, keeping previous set", "error", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("policy watcher error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops the watcher.
func (s *FileSource) Close() error {
	close(s.stopCh)
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

// LoadPolicyDir reads every YAML file under dir (one or more YAML
// documents per file, one policy per document), validates the whole set,
// and warns on cron expressions that will fail open at evaluation time.
func LoadPolicyDir(dir string, logger *slog.Logger) ([]*rcp.Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var policies []*rcp.Policy
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPolicyFile(path) {
			return nil
		}
		loaded, err := loadPolicyFile(path)
		if err != nil {
			return err
		}
		policies = append(policies, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load policy dir %q: %w", dir, err)
	}

	if err := rcp.ValidateAll(policies); err != nil {
		return nil, err
	}

	for _, p := range policies {
		if err := gate.ValidateSpec(p.ScheduleCron); err != nil {
			logger.Warn("policy has malformed cron schedule, it will fail open",
				"policy_id", p.ID,
				"schedule", p.ScheduleCron,
				"error", err,
			)
		}
	}

	return policies, nil
}

func loadPolicyFile(path string) ([]*rcp.Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file %q: %w", path, err)
	}
	defer f.Close()

	var policies []*rcp.Policy
	dec := yaml.NewDecoder(f)
	for {
		var p rcp.Policy
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse policy file %q: %w", path, err)
		}
		policies = append(policies, &p)
	}
	return policies, nil
}

func isPolicyFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}
