package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trafficgate/saturn/pkg/rcp"
)

// EvaluatorMetrics tracks policy evaluation outcomes.
//
// Metrics:
//   - saturn_rcp_evaluations_total: batches evaluated, by batch result
//   - saturn_rcp_evaluation_duration_seconds: batch evaluation duration
//   - saturn_rcp_actions_total: actions evaluated, by verdict
//   - saturn_rcp_risk_cost: risk cost charged per batch
//   - saturn_rcp_policy_applicable_total: times a policy applied to a batch
//   - saturn_rcp_limiter_rejections_total: rate limiter rejections per policy
//
// A nil *EvaluatorMetrics is valid and records nothing, so previews and
// tests skip registration entirely.
type EvaluatorMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	actionsTotal       *prometheus.CounterVec
	riskCost           prometheus.Histogram
	applicableTotal    *prometheus.CounterVec
	limiterRejections  *prometheus.CounterVec
}

// NewEvaluatorMetrics creates and registers evaluator metrics.
func NewEvaluatorMetrics(namespace string, registry *prometheus.Registry) *EvaluatorMetrics {
	m := &EvaluatorMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rcp",
				Name:      "evaluations_total",
				Help:      "Total number of batch evaluations",
			},
			[]string{"result"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rcp",
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of batch evaluation in seconds",
				// Evaluation is pure computation; it should sit well under a millisecond.
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15),
			},
		),
		actionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rcp",
				Name:      "actions_total",
				Help:      "Total number of actions evaluated, by verdict",
			},
			[]string{"verdict"},
		),
		riskCost: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rcp",
				Name:      "risk_cost",
				Help:      "Risk cost charged per batch",
				Buckets:   prometheus.LinearBuckets(0, 0.25, 16),
			},
		),
		applicableTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rcp",
				Name:      "policy_applicable_total",
				Help:      "Times a policy was applicable to a batch",
			},
			[]string{"policy_id"},
		),
		limiterRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rcp",
				Name:      "limiter_rejections_total",
				Help:      "Actions rejected by the rate limiter, by policy",
			},
			[]string{"policy_id"},
		),
	}

	registry.MustRegister(
		m.evaluationsTotal,
		m.evaluationDuration,
		m.actionsTotal,
		m.riskCost,
		m.applicableTotal,
		m.limiterRejections,
	)

	return m
}

// ObserveBatch records the outcome of one batch evaluation.
func (m *EvaluatorMetrics) ObserveBatch(result *rcp.EvaluationResult) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(string(result.BatchResult())).Inc()
	m.evaluationDuration.Observe(result.Duration.Seconds())
	m.actionsTotal.WithLabelValues(string(rcp.VerdictAllowed)).Add(float64(len(result.Allowed)))
	m.actionsTotal.WithLabelValues(string(rcp.VerdictModified)).Add(float64(len(result.Modified)))
	m.actionsTotal.WithLabelValues(string(rcp.VerdictBlocked)).Add(float64(len(result.Blocked)))
	m.riskCost.Observe(result.RiskCost)
}

// RecordPolicyApplicable records that a policy applied to a batch.
func (m *EvaluatorMetrics) RecordPolicyApplicable(policyID string) {
	if m == nil {
		return
	}
	m.applicableTotal.WithLabelValues(policyID).Inc()
}

// RecordLimiterRejection records a rate limiter rejection.
func (m *EvaluatorMetrics) RecordLimiterRejection(policyID string) {
	if m == nil {
		return
	}
	m.limiterRejections.WithLabelValues(policyID).Inc()
}

// RunnerMetrics tracks runner tick outcomes.
//
// Metrics:
//   - saturn_runner_ticks_total: ticks executed, by algorithm and outcome
//   - saturn_runner_actions_executed_total: actions executed, by algorithm
//   - saturn_runner_tick_duration_seconds: tick duration
//   - saturn_audit_write_failures_total: audit writes that failed after retry
type RunnerMetrics struct {
	ticksTotal         *prometheus.CounterVec
	actionsExecuted    *prometheus.CounterVec
	tickDuration       prometheus.Histogram
	auditWriteFailures prometheus.Counter
}

// NewRunnerMetrics creates and registers runner metrics.
func NewRunnerMetrics(namespace string, registry *prometheus.Registry) *RunnerMetrics {
	m := &RunnerMetrics{
		ticksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "ticks_total",
				Help:      "Total runner ticks, by algorithm and outcome",
			},
			[]string{"algo", "outcome"},
		),
		actionsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "actions_executed_total",
				Help:      "Actions executed after evaluation, by algorithm",
			},
			[]string{"algo"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "runner",
				Name:      "tick_duration_seconds",
				Help:      "Duration of runner ticks in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		auditWriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "write_failures_total",
				Help:      "Audit record writes that failed after retry",
			},
		),
	}

	registry.MustRegister(m.ticksTotal, m.actionsExecuted, m.tickDuration, m.auditWriteFailures)
	return m
}

// ObserveTick records one runner tick.
func (m *RunnerMetrics) ObserveTick(algo, outcome string, executed int, duration time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(algo, outcome).Inc()
	m.actionsExecuted.WithLabelValues(algo).Add(float64(executed))
	m.tickDuration.Observe(duration.Seconds())
}

// RecordAuditWriteFailure records an audit write that failed after retry.
func (m *RunnerMetrics) RecordAuditWriteFailure() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}
