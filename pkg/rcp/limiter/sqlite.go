package limiter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the shared limiter backend for multi-instance deployments:
// admissions live in a SQLite table and the check-prune-insert sequence
// runs inside one immediate transaction, so two instances sharing the
// database cannot double-admit past the limit.
//
// The CGO-free driver keeps the sidecar deployable as a static binary.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (creating if needed) the limiter database at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create limiter database dir %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open limiter database %q: %w", path, err)
	}

	// Serialize writers at the driver level; the transaction below does
	// the real mutual exclusion.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("limiter database pragma: %w", err)
		}
	}

	const schema = `
CREATE TABLE IF NOT EXISTS admissions (
	key         TEXT    NOT NULL,
	admitted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_admissions_key_time ON admissions (key, admitted_at);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize limiter schema: %w", err)
	}

	return &SQLite{
		db:     db,
		logger: slog.Default().With("component", "rcp.limiter.sqlite"),
	}, nil
}

// CheckAndRecord implements Limiter.
func (s *SQLite) CheckAndRecord(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("limiter transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	cutoff := now - window.Nanoseconds()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM admissions WHERE key = ? AND admitted_at <= ?`, key, cutoff); err != nil {
		return false, fmt.Errorf("prune admissions: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM admissions WHERE key = ?`, key).Scan(&count); err != nil {
		return false, fmt.Errorf("count admissions: %w", err)
	}

	if count >= limit {
		// Rejections still commit so the prune is not lost.
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("commit limiter transaction: %w", err)
		}
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO admissions (key, admitted_at) VALUES (?, ?)`, key, now); err != nil {
		return false, fmt.Errorf("record admission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit limiter transaction: %w", err)
	}
	return true, nil
}

// Close implements Limiter.
func (s *SQLite) Close() error {
	return s.db.Close()
}
