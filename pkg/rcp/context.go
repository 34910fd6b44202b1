package rcp

import (
	"strings"
	"time"
)

// Well-known segment attribute names used by segment selectors.
const (
	SegmentGeo           = "geo"
	SegmentDevice        = "device"
	SegmentSource        = "source"
	SegmentDestinationID = "destination_ids"
)

// EvaluationContext carries the live inputs for one evaluation batch:
// which algorithm is running, its current metrics, and the segment the
// batch targets.
type EvaluationContext struct {
	// AlgoKey names the algorithm whose actions are being evaluated.
	AlgoKey string `json:"algo_key"`

	// RunID identifies the runner tick. Empty for preview evaluations.
	RunID string `json:"run_id,omitempty"`

	// Metrics holds live metric values. Values may be flat (dotted keys)
	// or nested maps; MetricValue resolves both.
	Metrics map[string]any `json:"metrics,omitempty"`

	// SegmentData holds the segment attribute values of the batch, keyed
	// by the Segment* constants.
	SegmentData map[string][]string `json:"segment_data,omitempty"`

	// Timestamp is the evaluation instant. The evaluator fills in the
	// current time when zero.
	Timestamp time.Time `json:"timestamp"`

	// ManualOverrideActive bypasses all policies when true. Emergency
	// escape hatch; every action passes through unevaluated.
	ManualOverrideActive bool `json:"manual_override_active,omitempty"`
}

// MetricValue resolves a dotted metric path against the context's metrics.
// A flat key containing dots wins over a nested walk, so both
// {"roi.daily": 2} and {"roi": {"daily": 2}} resolve "roi.daily".
func (c *EvaluationContext) MetricValue(path string) (float64, bool) {
	if c.Metrics == nil || path == "" {
		return 0, false
	}
	if v, ok := c.Metrics[path]; ok {
		return toNumber(v)
	}

	parts := strings.Split(path, ".")
	var cur any = c.Metrics
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return 0, false
		}
		cur, ok = m[part]
		if !ok {
			return 0, false
		}
	}
	return toNumber(cur)
}

// SegmentValues returns the values of a segment attribute, or nil when the
// attribute is absent from the context.
func (c *EvaluationContext) SegmentValues(name string) []string {
	if c.SegmentData == nil {
		return nil
	}
	return c.SegmentData[name]
}
