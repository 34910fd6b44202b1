package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trafficgate/saturn/pkg/audit"
	"trafficgate/saturn/pkg/rcp"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Query the audit trail",
}

var recordsFlags struct {
	policyID string
	algoKey  string
	runID    string
	result   string
	since    string
	until    string
	limit    int
	offset   int
	format   string
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evaluation records",
	Long: `List audit records of past evaluations, newest first.

Examples:
  # Last 20 records for one policy
  saturn records list --policy weight-guard --limit 20

  # All blocked batches for one algorithm since a timestamp
  saturn records list --algo geo-optimizer --result blocked --since 2026-08-01T00:00:00Z

  # JSON output for scripting
  saturn records list --run-id 3f8c... --format json`,
	RunE: listRecords,
}

var recordsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize evaluation records",
	Long: `Print aggregate statistics over audit records matching the filters:
record counts per result, action verdict totals, and risk cost.

Examples:
  # Totals for one policy over the last week
  saturn records stats --policy weight-guard --since 2026-08-18T00:00:00Z`,
	RunE: statRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsStatsCmd)

	for _, cmd := range []*cobra.Command{recordsListCmd, recordsStatsCmd} {
		cmd.Flags().StringVar(&recordsFlags.policyID, "policy", "", "filter by policy ID")
		cmd.Flags().StringVar(&recordsFlags.algoKey, "algo", "", "filter by algorithm key")
		cmd.Flags().StringVar(&recordsFlags.runID, "run-id", "", "filter by run ID")
		cmd.Flags().StringVar(&recordsFlags.result, "result", "", "filter by batch result (allowed, modified, blocked, mixed)")
		cmd.Flags().StringVar(&recordsFlags.since, "since", "", "records created at or after this RFC3339 time")
		cmd.Flags().StringVar(&recordsFlags.until, "until", "", "records created at or before this RFC3339 time")
	}
	recordsListCmd.Flags().IntVar(&recordsFlags.limit, "limit", 0, "maximum rows to return")
	recordsListCmd.Flags().IntVar(&recordsFlags.offset, "offset", 0, "rows to skip")
	recordsListCmd.Flags().StringVar(&recordsFlags.format, "format", "text", "output format: text, json")
}

func buildQuery() (audit.Query, error) {
	q := audit.Query{
		PolicyID: recordsFlags.policyID,
		AlgoKey:  recordsFlags.algoKey,
		RunID:    recordsFlags.runID,
		Result:   rcp.BatchResult(recordsFlags.result),
		Limit:    recordsFlags.limit,
		Offset:   recordsFlags.offset,
	}
	if recordsFlags.since != "" {
		t, err := time.Parse(time.RFC3339, recordsFlags.since)
		if err != nil {
			return q, fmt.Errorf("parse --since: %w", err)
		}
		q.StartTime = &t
	}
	if recordsFlags.until != "" {
		t, err := time.Parse(time.RFC3339, recordsFlags.until)
		if err != nil {
			return q, fmt.Errorf("parse --until: %w", err)
		}
		q.EndTime = &t
	}
	return q, q.Validate()
}

func listRecords(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}
	store, err := openAuditStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := buildQuery()
	if err != nil {
		return err
	}

	records, err := store.List(cmd.Context(), q)
	if err != nil {
		return err
	}

	if recordsFlags.format == "json" {
		out, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	total, err := store.Count(cmd.Context(), q)
	if err != nil {
		return err
	}
	fmt.Printf("%d records (%d matching)\n", len(records), total)
	for _, r := range records {
		fmt.Printf("  %s  %-20s v%-3d %-14s %-8s allowed=%d modified=%d blocked=%d risk=%.2f\n",
			r.CreatedAt.Format(time.RFC3339),
			r.PolicyID, r.PolicyVersion, r.AlgoKey, r.Result,
			r.Stats.AllowedCount, r.Stats.ModifiedCount, r.Stats.BlockedCount,
			r.Stats.RiskCost,
		)
	}
	return nil
}

func statRecords(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}
	store, err := openAuditStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	q, err := buildQuery()
	if err != nil {
		return err
	}

	stats, err := store.Aggregate(cmd.Context(), q)
	if err != nil {
		return err
	}

	fmt.Printf("Records:          %d\n", stats.Records)
	for result, n := range stats.RecordsByResult {
		fmt.Printf("  %-15s %d\n", string(result)+":", n)
	}
	fmt.Printf("Actions allowed:  %d\n", stats.ActionsAllowed)
	fmt.Printf("Actions modified: %d\n", stats.ActionsModified)
	fmt.Printf("Actions blocked:  %d\n", stats.ActionsBlocked)
	fmt.Printf("Total risk cost:  %.4f\n", stats.TotalRiskCost)
	fmt.Printf("Avg risk cost:    %.4f\n", stats.AverageRiskCost)
	return nil
}
