package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"trafficgate/saturn/pkg/rcp"
	"trafficgate/saturn/pkg/rcp/gate"
	"trafficgate/saturn/pkg/rcp/guard"
	"trafficgate/saturn/pkg/rcp/limiter"
	"trafficgate/saturn/pkg/rcp/mutate"
	"trafficgate/saturn/pkg/telemetry/metrics"
)

// Recorder persists per-policy audit summaries for a batch. Preview
// evaluations run with a nil Recorder and persist nothing.
type Recorder interface {
	RecordBatch(ctx context.Context, ectx *rcp.EvaluationContext, result *rcp.EvaluationResult) error
}

// Evaluator runs batches of proposed actions through the applicable
// policies and produces a verdict per action.
type Evaluator struct {
	config   *Config
	gates    *gate.Evaluator
	limiter  limiter.Limiter
	recorder Recorder
	metrics  *metrics.EvaluatorMetrics
	logger   *slog.Logger
}

// New creates an evaluator. The limiter is required; recorder and metrics
// may be nil (preview mode, tests).
func New(config *Config, lim limiter.Limiter, recorder Recorder, m *metrics.EvaluatorMetrics, logger *slog.Logger) (*Evaluator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluator config: %w", err)
	}
	if lim == nil {
		return nil, fmt.Errorf("limiter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "rcp.evaluator")

	return &Evaluator{
		config:   config,
		gates:    gate.NewEvaluator(gate.NewSchedule(config.ScheduleTolerance), logger),
		limiter:  lim,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
	}, nil
}

// actionState tracks one action through the per-policy pipeline.
type actionState struct {
	original *rcp.Action
	working  *rcp.Action
	verdict  rcp.Verdict
	modified bool
}

// applicablePolicy pairs a policy with its per-batch bookkeeping.
type applicablePolicy struct {
	policy    *rcp.Policy
	report    rcp.PolicyReport
	processed int
}

// Evaluate runs one batch. Inputs are never mutated; surviving actions in
// the result are clones carrying any rewrites.
//
// The returned error is always an infrastructure failure (audit write);
// expected rule outcomes, including every action being blocked, are
// expressed in the result. When the error is non-nil the result is still
// the complete, correct evaluation outcome.
func (e *Evaluator) Evaluate(ctx context.Context, ectx *rcp.EvaluationContext, policies []*rcp.Policy, actions []*rcp.Action) (*rcp.EvaluationResult, error) {
	start := time.Now()
	if ectx.Timestamp.IsZero() {
		ectx.Timestamp = start
	}

	result := &rcp.EvaluationResult{}

	// The override escape hatch is checked before any policy filtering.
	if ectx.ManualOverrideActive {
		for _, a := range actions {
			result.Allowed = append(result.Allowed, a.Clone())
		}
		result.Bypassed = true
		result.Notes = append(result.Notes, rcp.Note{
			Stage:   rcp.StageOverride,
			Message: fmt.Sprintf("manual override active: %d actions allowed without evaluation", len(actions)),
		})
		result.Duration = time.Since(start)
		e.logger.Warn("manual override active, bypassing all policies",
			"algo_key", ectx.AlgoKey,
			"run_id", ectx.RunID,
			"actions", len(actions),
		)
		e.metrics.ObserveBatch(result)
		return result, nil
	}

	applicable := e.filterApplicable(ectx, policies, result)

	var batchRisk float64
	for _, a := range actions {
		st := &actionState{
			original: a,
			working:  a.Clone(),
			verdict:  rcp.VerdictAllowed,
		}

		for _, ap := range applicable {
			if err := e.applyPolicy(ctx, ap, st, ectx, batchRisk, result); err != nil {
				// A failure applying one policy blocks only this action;
				// the rest of the batch continues.
				e.logger.Error("policy application failed, blocking action",
					"policy_id", ap.policy.ID,
					"action_id", a.ID,
					"error", err,
				)
				result.Notes = append(result.Notes, rcp.Note{
					PolicyID: ap.policy.ID,
					ActionID: a.ID,
					Stage:    rcp.StageError,
					Message:  fmt.Sprintf("evaluation error: %v", err),
				})
				st.verdict = rcp.VerdictBlocked
				ap.report.BlockedCount++
				ap.report.Diffs = append(ap.report.Diffs, rcp.ActionDiff{
					ActionID: a.ID,
					Verdict:  rcp.VerdictBlocked,
					Before:   st.original.Data,
				})
			}
			if st.verdict == rcp.VerdictBlocked {
				break
			}
		}

		switch st.verdict {
		case rcp.VerdictBlocked:
			result.Blocked = append(result.Blocked, st.working)
		default:
			// Risk is charged only for surviving actions: a blocked
			// action's contribution is refunded so later cheaper actions
			// may still fit under a policy's ceiling.
			batchRisk += guard.Score(st.working)
			if st.modified {
				result.Modified = append(result.Modified, st.working)
			} else {
				result.Allowed = append(result.Allowed, st.working)
			}
		}
	}
	result.RiskCost = batchRisk

	for _, ap := range applicable {
		ap.report.RiskCost = batchRisk
		result.Reports = append(result.Reports, ap.report)
	}

	result.Duration = time.Since(start)
	e.metrics.ObserveBatch(result)

	if e.recorder != nil && len(result.Reports) > 0 {
		if err := e.recorder.RecordBatch(ctx, ectx, result); err != nil {
			return result, &RecordError{RunID: ectx.RunID, Cause: err}
		}
	}

	return result, nil
}

// filterApplicable gates each policy against the context once per batch
// and returns the survivors in stable evaluation order: ascending
// priority, ties broken by ID.
func (e *Evaluator) filterApplicable(ectx *rcp.EvaluationContext, policies []*rcp.Policy, result *rcp.EvaluationResult) []*applicablePolicy {
	ordered := make([]*rcp.Policy, len(policies))
	copy(ordered, policies)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	var applicable []*applicablePolicy
	for _, p := range ordered {
		ok, notes := e.gates.Applicable(p, ectx)
		result.Notes = append(result.Notes, notes...)
		if !ok {
			continue
		}
		e.metrics.RecordPolicyApplicable(p.ID)
		applicable = append(applicable, &applicablePolicy{
			policy: p,
			report: rcp.PolicyReport{
				PolicyID:      p.ID,
				PolicyVersion: p.Version,
				Mode:          p.Mode,
			},
		})
	}
	return applicable
}

// applyPolicy runs one policy's pipeline over one action: mutations,
// hard guards (including the batch risk ceiling), soft guards, then the
// rate limiter. Monitor-mode policies run the identical pipeline against
// a scratch copy and downgrade every enforcement outcome to a note.
func (e *Evaluator) applyPolicy(ctx context.Context, ap *applicablePolicy, st *actionState, ectx *rcp.EvaluationContext, batchRisk float64, result *rcp.EvaluationResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic applying policy %s: %v", ap.policy.ID, r)
		}
	}()

	p := ap.policy
	monitor := p.Mode == rcp.ModeMonitor
	ap.processed++

	target := st.working
	if monitor {
		target = st.working.Clone()
	}

	// Mutation pipeline.
	mo := mutate.Apply(p, target)
	appendNotes(result, monitor, mo.Notes...)
	ap.report.NoteCount += len(mo.Notes)

	if mo.Blocked {
		if monitor {
			ap.report.Diffs = append(ap.report.Diffs, rcp.ActionDiff{
				ActionID: st.original.ID,
				Verdict:  rcp.VerdictBlocked,
				Before:   st.original.Data,
			})
			ap.report.AllowedCount++
			return nil
		}
		e.block(ap, st)
		return nil
	}

	if mo.Changed {
		diff := rcp.ActionDiff{
			ActionID: st.original.ID,
			Verdict:  rcp.VerdictModified,
			Before:   st.original.Data,
			After:    target.Data,
		}
		ap.report.Diffs = append(ap.report.Diffs, diff)
		if monitor {
			ap.report.AllowedCount++
		} else {
			st.modified = true
			ap.report.ModifiedCount++
		}
	}

	// Hard guards, in a fixed order so the recorded reason is stable:
	// batch position, per-action ceilings, cumulative risk ceiling.
	contribution := guard.Score(target)
	violation := guard.CheckBatchPosition(p, ap.processed)
	if violation == nil {
		violation = guard.CheckAction(p, target)
	}
	if violation == nil {
		violation = guard.CheckRiskCeiling(p, batchRisk, contribution)
	}

	if violation != nil {
		note := rcp.Note{
			PolicyID: p.ID,
			ActionID: st.original.ID,
			Stage:    rcp.StageGuard,
			Message:  violation.Reason,
		}
		if violation.Overflow > 0 {
			note.Stage = rcp.StageRisk
		}
		if monitor {
			note.Message = "would block: " + note.Message
			appendNotes(result, true, note)
			ap.report.NoteCount++
			ap.report.AllowedCount++
			return nil
		}
		appendNotes(result, false, note)
		ap.report.NoteCount++
		e.block(ap, st)
		return nil
	}

	// Soft guards never block in either mode.
	soft := guard.CheckSoftGuards(p, target, contribution)
	appendNotes(result, monitor, soft...)
	ap.report.NoteCount += len(soft)

	if monitor {
		// Monitor mode consumes no limiter slots: a shadow policy must
		// not starve the enforcing ones sharing its key.
		ap.report.AllowedCount++
		return nil
	}

	// Rate limit window.
	if l := p.Limits; l != nil {
		key := limiter.Key("actions", p.ID, ectx.AlgoKey)
		admitted, lerr := e.limiter.CheckAndRecord(ctx, key, l.Window(), l.MaxActionsInWindow)
		if lerr != nil {
			return fmt.Errorf("rate limiter: %w", lerr)
		}
		if !admitted {
			e.metrics.RecordLimiterRejection(p.ID)
			appendNotes(result, false, rcp.Note{
				PolicyID: p.ID,
				ActionID: st.original.ID,
				Stage:    rcp.StageLimit,
				Message:  fmt.Sprintf("rate limit exceeded: %d actions per %s", l.MaxActionsInWindow, l.Window()),
			})
			ap.report.NoteCount++
			e.block(ap, st)
			return nil
		}
	}

	// Daily pause ceiling rides the same limiter on a 24h window.
	if max := p.HardGuards.MaxPausesPerDay; max > 0 && target.Type == rcp.ActionPause {
		key := limiter.Key("pauses", p.ID, ectx.AlgoKey)
		admitted, lerr := e.limiter.CheckAndRecord(ctx, key, 24*time.Hour, max)
		if lerr != nil {
			return fmt.Errorf("pause limiter: %w", lerr)
		}
		if !admitted {
			e.metrics.RecordLimiterRejection(p.ID)
			appendNotes(result, false, rcp.Note{
				PolicyID: p.ID,
				ActionID: st.original.ID,
				Stage:    rcp.StageGuard,
				Message:  fmt.Sprintf("daily pause ceiling of %d reached", max),
			})
			ap.report.NoteCount++
			e.block(ap, st)
			return nil
		}
	}

	ap.report.AllowedCount++
	return nil
}

// block marks the action terminally blocked and attributes it to the
// policy's report. The blocking note is appended by the caller before
// this runs.
func (e *Evaluator) block(ap *applicablePolicy, st *actionState) {
	st.verdict = rcp.VerdictBlocked
	ap.report.BlockedCount++
	ap.report.Diffs = append(ap.report.Diffs, rcp.ActionDiff{
		ActionID: st.original.ID,
		Verdict:  rcp.VerdictBlocked,
		Before:   st.original.Data,
	})
}

// appendNotes adds notes to the batch result, tagging monitor-mode notes
// so audit readers can tell shadow outcomes from enforced ones.
func appendNotes(result *rcp.EvaluationResult, monitor bool, notes ...rcp.Note) {
	for _, n := range notes {
		if monitor {
			n.Message = "monitor: " + n.Message
		}
		result.Notes = append(result.Notes, n)
	}
}
