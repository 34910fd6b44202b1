package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"trafficgate/saturn/pkg/audit"
	auditrecorder "trafficgate/saturn/pkg/audit/recorder"
	"trafficgate/saturn/pkg/audit/retention"
	auditstorage "trafficgate/saturn/pkg/audit/storage"
	"trafficgate/saturn/pkg/cli"
	"trafficgate/saturn/pkg/config"
	"trafficgate/saturn/pkg/rcp/evaluator"
	"trafficgate/saturn/pkg/rcp/limiter"
	"trafficgate/saturn/pkg/runner"
	"trafficgate/saturn/pkg/telemetry/logging"
	"trafficgate/saturn/pkg/telemetry/metrics"
)

var runFlags struct {
	logLevel string
	dryRun   bool
	once     bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Saturn runner",
	Long: `Start the Saturn runner with the specified configuration.

The runner drives one tick loop per algorithm: each tick it collects the
algorithm's proposed actions from its spool directory, evaluates them
against the active policy set, persists an audit record, and hands the
surviving actions to the executor.

Examples:
  # Start with default config
  saturn run

  # Start with custom config
  saturn run --config /etc/saturn/config.yaml

  # Run exactly one tick per algorithm, then exit
  saturn run --once

  # Validate config without starting the runner
  saturn run --dry-run`,
	RunE: runRunner,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the runner")
	runCmd.Flags().BoolVar(&runFlags.once, "once", false, "run one tick per algorithm and exit")
}

// loadEffectiveConfig loads the configured file with environment
// overrides. A missing file at the default path falls back to the
// built-in defaults; a missing file given explicitly is an error.
func loadEffectiveConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if os.IsNotExist(err) && cfgFile == "config.yaml" {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("config file %q: %w", cfgFile, err)
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

func runRunner(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	printBanner(cfg)

	// Rate-limit store
	var lim limiter.Limiter
	switch cfg.Limiter.Backend {
	case "sqlite":
		lim, err = limiter.NewSQLite(cfg.Limiter.SQLitePath)
		if err != nil {
			return fmt.Errorf("open limiter store: %w", err)
		}
	default:
		lim = limiter.NewMemory()
	}
	defer lim.Close()

	// Audit storage, recorder, retention
	store, err := openAuditStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := auditrecorder.New(store, auditrecorder.DefaultConfig())

	// Metrics
	registry := prometheus.NewRegistry()
	var evalMetrics *metrics.EvaluatorMetrics
	var runnerMetrics *metrics.RunnerMetrics
	if cfg.Telemetry.Metrics.Enabled {
		evalMetrics = metrics.NewEvaluatorMetrics(cfg.Telemetry.Metrics.Namespace, registry)
		runnerMetrics = metrics.NewRunnerMetrics(cfg.Telemetry.Metrics.Namespace, registry)
	}

	eval, err := evaluator.New(
		&evaluator.Config{ScheduleTolerance: cfg.Policy.ScheduleTolerance},
		lim, rec, evalMetrics, logger,
	)
	if err != nil {
		return fmt.Errorf("create evaluator: %w", err)
	}

	ctx := cli.SetupSignalHandler()

	// Policy source
	source, err := runner.NewFileSource(cfg.Policy.Dir, logger)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	defer source.Close()
	if cfg.Policy.Watch {
		if err := source.Watch(ctx); err != nil {
			return fmt.Errorf("watch policy dir: %w", err)
		}
	}

	// Retention scheduler
	pruner := retention.NewPruner(store, retention.Config{
		RetentionDays: cfg.Audit.RetentionDays,
		MaxRecords:    cfg.Audit.MaxRecords,
		PruneSchedule: cfg.Audit.PruneSchedule,
	})
	scheduler := retention.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start retention scheduler: %w", err)
	}
	defer scheduler.Stop()

	// Algorithms and executor
	algorithms, err := buildAlgorithms(cfg)
	if err != nil {
		return err
	}
	if len(algorithms) == 0 {
		logger.Warn("no algorithms configured or discovered", "spool_dir", cfg.Runner.SpoolDir)
	}

	executor, closeExecutor, err := buildExecutor(cfg)
	if err != nil {
		return err
	}
	defer closeExecutor()

	// Metrics listener
	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: cfg.Telemetry.Metrics.ListenAddress, Handler: mux}
		go func() {
			logger.Info("metrics listener started", "address", cfg.Telemetry.Metrics.ListenAddress)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	r, err := runner.New(
		&runner.Config{
			TickInterval: cfg.Runner.TickInterval,
			TickBudget:   cfg.Runner.TickBudget,
			Fallback:     runner.FallbackMode(cfg.Runner.Fallback),
		},
		source, eval, executor, algorithms, runnerMetrics, logger,
	)
	if err != nil {
		return err
	}

	if runFlags.once {
		for _, algo := range algorithms {
			report := r.Tick(ctx, algo)
			fmt.Printf("tick %s: algo=%s outcome=%s executed=%d blocked=%d\n",
				report.RunID, report.AlgoKey, report.Outcome, report.Executed, report.Blocked)
		}
		return nil
	}

	r.Start(ctx)
	<-ctx.Done()

	logger.Info("shutdown signal received")
	r.Stop()
	return nil
}

func openAuditStorage(cfg *config.Config) (audit.Storage, error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		store, err := auditstorage.NewSQLite(&auditstorage.SQLiteConfig{Path: cfg.Audit.SQLitePath})
		if err != nil {
			return nil, fmt.Errorf("open audit store: %w", err)
		}
		return store, nil
	default:
		return auditstorage.NewMemory(), nil
	}
}

func buildAlgorithms(cfg *config.Config) ([]runner.Algorithm, error) {
	if len(cfg.Runner.Algorithms) == 0 {
		return runner.DiscoverSpoolAlgorithms(cfg.Runner.SpoolDir)
	}
	algos := make([]runner.Algorithm, 0, len(cfg.Runner.Algorithms))
	for _, key := range cfg.Runner.Algorithms {
		algo, err := runner.NewSpoolAlgorithm(cfg.Runner.SpoolDir, key)
		if err != nil {
			return nil, err
		}
		algos = append(algos, algo)
	}
	return algos, nil
}

func buildExecutor(cfg *config.Config) (runner.ActionExecutor, func() error, error) {
	if cfg.Runner.Executor == "log" {
		return runner.NewLogExecutor(nil), func() error { return nil }, nil
	}
	outbox, err := runner.NewOutboxExecutor(cfg.Runner.OutboxPath)
	if err != nil {
		return nil, nil, err
	}
	return outbox, outbox.Close, nil
}

func printBanner(cfg *config.Config) {
	fmt.Println("Saturn RCP Engine")
	fmt.Printf("  Version:       %s\n", Version)
	fmt.Printf("  Policy dir:    %s (watch: %v)\n", cfg.Policy.Dir, cfg.Policy.Watch)
	fmt.Printf("  Spool dir:     %s\n", cfg.Runner.SpoolDir)
	fmt.Printf("  Tick interval: %s\n", cfg.Runner.TickInterval)
	fmt.Printf("  Fallback:      %s\n", cfg.Runner.Fallback)
	fmt.Printf("  Audit backend: %s\n", cfg.Audit.Backend)
	fmt.Println()
}
