package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trafficgate/saturn/pkg/rcp"
	"trafficgate/saturn/pkg/rcp/evaluator"
	"trafficgate/saturn/pkg/rcp/limiter"
	"trafficgate/saturn/pkg/runner"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate and preview policy files",
}

var lintFlags struct {
	dir string
}

var policyLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate policy files",
	Long: `Validate policy YAML files for structural and semantic errors.

The lint command loads every policy in the directory and performs the
same validation the runner performs at startup:
  - YAML syntax
  - Required fields, ranges, duplicate policy IDs
  - Gate shape (value or metric reference, not both)
  - Mutation rule parameters per kind
  - Cron schedule parseability (warning: malformed schedules fail open)

Examples:
  # Lint the configured policy directory
  saturn policy lint

  # Lint a specific directory
  saturn policy lint --dir policies/`,
	RunE: lintPolicies,
}

var previewFlags struct {
	policiesDir string
	inputFile   string
	algoKey     string
	runID       string
}

var policyPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Evaluate a batch without persisting audit records",
	Long: `Evaluate a batch of proposed actions against a policy set and print
the full result as JSON. Nothing is persisted: no audit rows are
written and no rate-limit slots are consumed.

The input file is a tick input document: actions plus the metrics and
segment data they should be judged against.

Examples:
  # Preview a batch against the configured policy directory
  saturn policy preview --input batch.yaml

  # Preview against a specific policy set and algorithm key
  saturn policy preview --policies staging/ --input batch.yaml --algo geo-optimizer`,
	RunE: previewBatch,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyLintCmd)
	policyCmd.AddCommand(policyPreviewCmd)

	policyLintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "policy directory (default: configured policy.dir)")

	policyPreviewCmd.Flags().StringVar(&previewFlags.policiesDir, "policies", "", "policy directory (default: configured policy.dir)")
	policyPreviewCmd.Flags().StringVarP(&previewFlags.inputFile, "input", "i", "", "tick input YAML file (required)")
	policyPreviewCmd.Flags().StringVar(&previewFlags.algoKey, "algo", "", "algorithm key (default: taken from the first action)")
	policyPreviewCmd.Flags().StringVar(&previewFlags.runID, "run-id", "preview", "run identifier for rollout sampling")
	_ = policyPreviewCmd.MarkFlagRequired("input")
}

func policyDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return "", err
	}
	return cfg.Policy.Dir, nil
}

func lintPolicies(cmd *cobra.Command, args []string) error {
	dir, err := policyDir(lintFlags.dir)
	if err != nil {
		return err
	}

	policies, err := runner.LoadPolicyDir(dir, nil)
	if err != nil {
		return err
	}

	fmt.Printf("✓ %d policies valid in %s\n", len(policies), dir)
	for _, p := range policies {
		state := "enabled"
		if !p.Enabled {
			state = "disabled"
		}
		fmt.Printf("  %s (v%d, priority %d, mode %s, %s)\n", p.ID, p.Version, p.Priority, p.Mode, state)
	}
	return nil
}

func previewBatch(cmd *cobra.Command, args []string) error {
	dir, err := policyDir(previewFlags.policiesDir)
	if err != nil {
		return err
	}
	policies, err := runner.LoadPolicyDir(dir, nil)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(previewFlags.inputFile)
	if err != nil {
		return fmt.Errorf("read input file %q: %w", previewFlags.inputFile, err)
	}
	input := &runner.TickInput{}
	if err := yaml.Unmarshal(data, input); err != nil {
		return fmt.Errorf("parse input file %q: %w", previewFlags.inputFile, err)
	}
	if len(input.Actions) == 0 {
		return fmt.Errorf("input file %q contains no actions", previewFlags.inputFile)
	}

	algoKey := previewFlags.algoKey
	if algoKey == "" {
		algoKey = input.Actions[0].AlgoKey
	}

	// An in-memory limiter keeps production rate-limit state untouched.
	eval, err := evaluator.New(nil, limiter.NewMemory(), nil, nil, nil)
	if err != nil {
		return err
	}

	ectx := &rcp.EvaluationContext{
		AlgoKey:              algoKey,
		RunID:                previewFlags.runID,
		Metrics:              input.Metrics,
		SegmentData:          input.SegmentData,
		Timestamp:            time.Now(),
		ManualOverrideActive: input.ManualOverride,
	}

	result, err := eval.Evaluate(cmd.Context(), ectx, policies, input.Actions)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
