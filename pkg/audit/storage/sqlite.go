package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trafficgate/saturn/pkg/audit"
	"trafficgate/saturn/pkg/rcp"
)

// SQLiteConfig configures the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns caps open connections. Default: 10.
	MaxOpenConns int

	// WALMode enables write-ahead logging for better concurrency.
	// Default: true.
	WALMode bool

	// BusyTimeout is how long a locked database is retried. Default: 5s.
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLite is the durable audit backend.
type SQLite struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLite opens (creating if needed) the audit database.
func NewSQLite(config *SQLiteConfig) (*SQLite, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, audit.NewStorageError("sqlite", "open", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLite{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("audit storage initialized", "path", config.Path, "wal", config.WALMode)
	return s, nil
}

func (s *SQLite) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			return audit.NewStorageError("sqlite", "enable WAL", err)
		}
	}
	if s.config.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout=%d", s.config.BusyTimeout.Milliseconds())
		if _, err := s.db.Exec(pragma); err != nil {
			return audit.NewStorageError("sqlite", "set busy timeout", err)
		}
	}
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return audit.NewStorageError("sqlite", "create schema", err)
	}
	return nil
}

// WriteBatch implements audit.Storage. All records land in one
// transaction; a failed batch writes nothing.
func (s *SQLite) WriteBatch(ctx context.Context, records []*audit.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.NewStorageError("sqlite", "begin batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO evaluation_records (
			id, policy_id, policy_version, algo_key, run_id, result,
			allowed_count, modified_count, blocked_count, note_count,
			risk_cost, duration_ns, diffs, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return audit.NewStorageError("sqlite", "prepare insert", err)
	}
	defer stmt.Close()

	for _, r := range records {
		diffs, err := json.Marshal(r.Diffs)
		if err != nil {
			return audit.NewStorageError("sqlite", "marshal diffs", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.PolicyID, r.PolicyVersion, r.AlgoKey, r.RunID, string(r.Result),
			r.Stats.AllowedCount, r.Stats.ModifiedCount, r.Stats.BlockedCount, r.Stats.NoteCount,
			r.Stats.RiskCost, r.Stats.Duration.Nanoseconds(), string(diffs), r.CreatedAt.UnixNano(),
		); err != nil {
			return audit.NewStorageError("sqlite", "insert record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return audit.NewStorageError("sqlite", "commit batch", err)
	}
	return nil
}

// List implements audit.Storage.
func (s *SQLite) List(ctx context.Context, q audit.Query) ([]*audit.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhere(q)
	order := "DESC"
	if q.SortOrder == "asc" {
		order = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT id, policy_id, policy_version, algo_key, run_id, result,
		       allowed_count, modified_count, blocked_count, note_count,
		       risk_cost, duration_ns, diffs, created_at
		FROM evaluation_records %s
		ORDER BY created_at %s
		LIMIT ? OFFSET ?`, where, order)
	args = append(args, q.EffectiveLimit(), q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "list records", err)
	}
	defer rows.Close()

	var out []*audit.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "iterate records", err)
	}
	return out, nil
}

// Count implements audit.Storage.
func (s *SQLite) Count(ctx context.Context, q audit.Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}

	where, args := buildWhere(q)
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM evaluation_records "+where, args...).Scan(&count)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "count records", err)
	}
	return count, nil
}

// Aggregate implements audit.Storage.
func (s *SQLite) Aggregate(ctx context.Context, q audit.Query) (*audit.AggregateStats, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhere(q)
	query := fmt.Sprintf(`
		SELECT result, COUNT(*),
		       COALESCE(SUM(allowed_count), 0),
		       COALESCE(SUM(modified_count), 0),
		       COALESCE(SUM(blocked_count), 0),
		       COALESCE(SUM(risk_cost), 0)
		FROM evaluation_records %s
		GROUP BY result`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "aggregate records", err)
	}
	defer rows.Close()

	stats := &audit.AggregateStats{
		RecordsByResult: make(map[rcp.BatchResult]int),
	}
	for rows.Next() {
		var result string
		var count, allowed, modified, blocked int
		var risk float64
		if err := rows.Scan(&result, &count, &allowed, &modified, &blocked, &risk); err != nil {
			return nil, audit.NewStorageError("sqlite", "scan aggregate", err)
		}
		stats.Records += count
		stats.RecordsByResult[rcp.BatchResult(result)] = count
		stats.ActionsAllowed += allowed
		stats.ActionsModified += modified
		stats.ActionsBlocked += blocked
		stats.TotalRiskCost += risk
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "iterate aggregates", err)
	}
	if stats.Records > 0 {
		stats.AverageRiskCost = stats.TotalRiskCost / float64(stats.Records)
	}
	return stats, nil
}

// DeleteBefore implements audit.Storage.
func (s *SQLite) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM evaluation_records WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "delete before", err)
	}
	return res.RowsAffected()
}

// TrimToCount implements audit.Storage.
func (s *SQLite) TrimToCount(ctx context.Context, max int) (int64, error) {
	if max < 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM evaluation_records WHERE id NOT IN (
			SELECT id FROM evaluation_records ORDER BY created_at DESC LIMIT ?
		)`, max)
	if err != nil {
		return 0, audit.NewStorageError("sqlite", "trim to count", err)
	}
	return res.RowsAffected()
}

// Close implements audit.Storage.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func buildWhere(q audit.Query) (string, []any) {
	var conds []string
	var args []any

	if q.PolicyID != "" {
		conds = append(conds, "policy_id = ?")
		args = append(args, q.PolicyID)
	}
	if q.AlgoKey != "" {
		conds = append(conds, "algo_key = ?")
		args = append(args, q.AlgoKey)
	}
	if q.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, q.RunID)
	}
	if q.Result != "" {
		conds = append(conds, "result = ?")
		args = append(args, string(q.Result))
	}
	if q.StartTime != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, q.EndTime.UnixNano())
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// scanRecord reads one row in the column order used by List.
func scanRecord(rows *sql.Rows) (*audit.Record, error) {
	var r audit.Record
	var result, diffs string
	var durationNS, createdNS int64

	if err := rows.Scan(
		&r.ID, &r.PolicyID, &r.PolicyVersion, &r.AlgoKey, &r.RunID, &result,
		&r.Stats.AllowedCount, &r.Stats.ModifiedCount, &r.Stats.BlockedCount, &r.Stats.NoteCount,
		&r.Stats.RiskCost, &durationNS, &diffs, &createdNS,
	); err != nil {
		return nil, err
	}

	r.Result = rcp.BatchResult(result)
	r.Stats.Duration = time.Duration(durationNS)
	r.CreatedAt = time.Unix(0, createdNS).UTC()
	if diffs != "" && diffs != "null" {
		if err := json.Unmarshal([]byte(diffs), &r.Diffs); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
