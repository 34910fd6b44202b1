// Saturn is a runtime control policy engine for affiliate-traffic
// optimization platforms.
//
// It sits between traffic-optimization algorithms and production state,
// providing:
//   - Declarative gate, guard, and mutation policies over proposed actions
//   - Per-tick risk budgets and rolling rate limits
//   - Deterministic percentage rollouts and cron activation windows
//   - An append-only audit trail of every evaluation
//
// Usage:
//
//	# Start the runner with default configuration
//	saturn run
//
//	# Start with a custom configuration file
//	saturn run --config /etc/saturn/config.yaml
//
//	# Validate policy files
//	saturn policy lint --dir policies/
//
//	# Preview a batch against a policy set without persisting audit rows
//	saturn policy preview --policies policies/ --input batch.yaml
//
//	# Query the audit trail
//	saturn records list --policy weight-guard --limit 20
//
//	# Show version information
//	saturn version
package main

func main() {
	Execute()
}
