package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trafficgate/saturn/pkg/rcp"
)

// LogExecutor logs surviving actions instead of applying them. Useful
// for shadow deployments and local development.
type LogExecutor struct {
	logger *slog.Logger
}

// NewLogExecutor creates a log-only executor.
func NewLogExecutor(logger *slog.Logger) *LogExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogExecutor{logger: logger.With("component", "runner.executor")}
}

// Execute implements ActionExecutor.
func (e *LogExecutor) Execute(ctx context.Context, action *rcp.Action) error {
	e.logger.Info("action approved",
		"action_id", action.ID,
		"action_type", action.Type,
		"algo_key", action.AlgoKey,
		"idempotency_key", action.IdempotencyKey,
	)
	return nil
}

// OutboxExecutor appends approved actions to a JSON-lines outbox file.
// Downstream delivery workers consume the outbox and dedupe on the
// action's idempotency key, so appending the same action twice is safe.
type OutboxExecutor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

type outboxEntry struct {
	ExecutedAt time.Time   `json:"executed_at"`
	Action     *rcp.Action `json:"action"`
}

// NewOutboxExecutor opens (or creates) the outbox file for appending.
func NewOutboxExecutor(path string) (*OutboxExecutor, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create outbox dir %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open outbox %q: %w", path, err)
	}
	return &OutboxExecutor{file: f, enc: json.NewEncoder(f)}, nil
}

// Execute implements ActionExecutor.
func (e *OutboxExecutor) Execute(ctx context.Context, action *rcp.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry := outboxEntry{ExecutedAt: time.Now().UTC(), Action: action}
	if err := e.enc.Encode(entry); err != nil {
		return fmt.Errorf("append action %q to outbox: %w", action.ID, err)
	}
	return nil
}

// Close flushes and closes the outbox file.
func (e *OutboxExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Close()
}
