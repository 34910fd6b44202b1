// Package metrics registers the engine's Prometheus metrics: evaluation
// outcomes, limiter rejections, runner ticks, and audit write failures.
// Metric handles are nil-safe so components can run unmetered in previews
// and tests.
package metrics
