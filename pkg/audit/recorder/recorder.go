package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trafficgate/saturn/pkg/audit"
	"trafficgate/saturn/pkg/rcp"
)

// Config configures the recorder.
type Config struct {
	// WriteTimeout bounds one storage write attempt. Default: 5s.
	WriteTimeout time.Duration

	// RetryAttempts is how many times a failed write is retried before
	// the error surfaces. Default: 1.
	RetryAttempts int

	// RetryDelay is the pause before a retry. Default: 100ms.
	RetryDelay time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		WriteTimeout:  5 * time.Second,
		RetryAttempts: 1,
		RetryDelay:    100 * time.Millisecond,
	}
}

// Recorder persists per-policy evaluation records.
type Recorder struct {
	storage audit.Storage
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a recorder over the given storage backend.
func New(storage audit.Storage, config *Config) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Recorder{
		storage: storage,
		config:  config,
		logger:  slog.Default().With("component", "audit.recorder"),
		now:     time.Now,
	}
}

// RecordBatch writes one audit record per policy report in the result.
// The batch is written atomically; on failure it is retried per config and
// the final failure comes back as a *audit.RecorderError. A nil error
// means every record is durably stored.
func (r *Recorder) RecordBatch(ctx context.Context, ectx *rcp.EvaluationContext, result *rcp.EvaluationResult) error {
	if len(result.Reports) == 0 {
		return nil
	}

	now := r.now().UTC()
	records := make([]*audit.Record, 0, len(result.Reports))
	for _, rep := range result.Reports {
		records = append(records, &audit.Record{
			ID:            uuid.NewString(),
			PolicyID:      rep.PolicyID,
			PolicyVersion: rep.PolicyVersion,
			AlgoKey:       ectx.AlgoKey,
			RunID:         ectx.RunID,
			Result:        rep.Result(),
			Stats: audit.Stats{
				AllowedCount:  rep.AllowedCount,
				ModifiedCount: rep.ModifiedCount,
				BlockedCount:  rep.BlockedCount,
				NoteCount:     rep.NoteCount,
				RiskCost:      rep.RiskCost,
				Duration:      result.Duration,
			},
			Diffs:     rep.Diffs,
			CreatedAt: now,
		})
	}

	var lastErr error
	for attempt := 0; attempt <= r.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			r.logger.Warn("retrying audit batch write",
				"run_id", ectx.RunID,
				"attempt", attempt,
				"error", lastErr,
			)
			select {
			case <-time.After(r.config.RetryDelay):
			case <-ctx.Done():
				return &audit.RecorderError{RunID: ectx.RunID, Records: len(records), Cause: ctx.Err()}
			}
		}

		writeCtx, cancel := context.WithTimeout(ctx, r.config.WriteTimeout)
		lastErr = r.storage.WriteBatch(writeCtx, records)
		cancel()

		if lastErr == nil {
			r.logger.Debug("audit batch written",
				"run_id", ectx.RunID,
				"records", len(records),
			)
			return nil
		}
	}

	return &audit.RecorderError{RunID: ectx.RunID, Records: len(records), Cause: lastErr}
}
