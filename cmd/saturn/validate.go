package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trafficgate/saturn/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file, including environment
variable overrides, without starting anything.

Examples:
  saturn validate
  saturn validate --config /etc/saturn/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
		fmt.Printf("  Policy dir:    %s\n", cfg.Policy.Dir)
		fmt.Printf("  Spool dir:     %s\n", cfg.Runner.SpoolDir)
		fmt.Printf("  Limiter:       %s\n", cfg.Limiter.Backend)
		fmt.Printf("  Audit backend: %s\n", cfg.Audit.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
