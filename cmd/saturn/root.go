package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "saturn",
	Short: "Saturn - runtime control policy engine for traffic optimization",
	Long: `Saturn is a runtime control policy engine that governs the actions of
automated traffic-optimization algorithms.

Algorithms propose actions (reweights, budget shifts, pauses); Saturn
evaluates each batch against declarative policies and decides what
reaches production:
  - Gates: scope, schedule windows, rollouts, metric conditions
  - Guards: hard numeric ceilings and soft advisory requirements
  - Mutations: required fields, clamps, delta limits
  - Rate limits and per-tick risk budgets
  - Append-only audit trail of every evaluation`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
