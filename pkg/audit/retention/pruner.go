package retention

import (
	"context"
	"log/slog"
	"time"

	"trafficgate/saturn/pkg/audit"
)

// Config controls retention pruning.
type Config struct {
	// RetentionDays deletes records older than this many days. Zero
	// disables age-based pruning.
	RetentionDays int

	// MaxRecords trims the store to at most this many rows, oldest first.
	// Zero disables count-based pruning.
	MaxRecords int

	// PruneSchedule is a cron expression for automatic pruning. Empty
	// disables the scheduler.
	PruneSchedule string
}

// Pruner deletes audit records past their retention.
type Pruner struct {
	storage audit.Storage
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a pruner over the given storage backend.
func NewPruner(storage audit.Storage, config Config) *Pruner {
	return &Pruner{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.retention"),
		now:     time.Now,
	}
}

// Prune runs one pruning cycle: age-based deletion first, then the count
// trim. Returns the total number of deleted records.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.RetentionDays > 0 {
		cutoff := p.now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.storage.DeleteBefore(ctx, cutoff)
		if err != nil {
			return total, err
		}
		total += deleted
	}

	if p.config.MaxRecords > 0 {
		deleted, err := p.storage.TrimToCount(ctx, p.config.MaxRecords)
		if err != nil {
			return total, err
		}
		total += deleted
	}

	if total > 0 {
		p.logger.Info("audit records pruned",
			"deleted", total,
			"retention_days", p.config.RetentionDays,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}
