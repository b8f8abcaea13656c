package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiihann/sqbench/bench"
	"github.com/weiihann/sqbench/config"
	"github.com/weiihann/sqbench/errs"
	"github.com/weiihann/sqbench/generate"
	"github.com/weiihann/sqbench/harness"
	"github.com/weiihann/sqbench/progress"
	"github.com/weiihann/sqbench/report"
)

// resolveConfig layers defaults, the config file, SQBENCH_* variables
// and finally any flag set explicitly on the command line.
func resolveConfig(cmd *cobra.Command, g *globalFlags, storagePath string) (*config.Config, error) {
	cfg := config.Default()

	if g.configPath != "" {
		var err error

		cfg, err = config.LoadFromFile(g.configPath)
		if err != nil {
			return nil, err
		}
	}

	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("path") {
		cfg.StoragePath = storagePath
	}
	if flags.Changed("words") {
		cfg.WordsPath = g.wordsPath
	}
	if flags.Changed("times") {
		cfg.Times = g.times
	}
	if flags.Changed("seed") {
		cfg.Seed = g.seed
	}

	return cfg, nil
}

func benchConfig(cfg *config.Config, tuned bool) bench.Config {
	return bench.Config{
		StoragePath: cfg.StoragePath,
		WordsPath:   cfg.WordsPath,
		Times:       cfg.Times,
		Seed:        cfg.Seed,
		Tuning:      cfg.Tuning,
		Tuned:       tuned,
		RateLimit:   cfg.RateLimit,
	}
}

func emitReport(w io.Writer, rep report.RunReport, asJSON, verbose bool) error {
	if verbose {
		if err := report.Summary(os.Stderr, rep); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if asJSON {
		return report.GenerateJSON(w, rep)
	}

	return report.Emit(w, rep)
}

func newGenerateCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		path  string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Recreate the kv table and fill it from the word list",
		Long: `Drop and recreate the kv table, then insert one row per word, each
paired with a fresh random UUID. Prints the rowid of the last insert.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, g, path)
			if err != nil {
				return err
			}

			var newProgress generate.ProgressFunc
			if !quiet {
				newProgress = func(total int64) generate.Progress {
					return progress.New(os.Stderr, total, "inserting")
				}
			}

			res, err := generate.Run(cmd.Context(), logger, generate.Config{
				StoragePath: cfg.StoragePath,
				WordsPath:   cfg.WordsPath,
				Seed:        cfg.Seed,
				Tuning:      cfg.Tuning,
			}, newProgress)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.LastRowID)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&path, "path", config.DefaultStoragePath,
		"Database file to (re)create")
	flags.BoolVarP(&quiet, "quiet", "q", false,
		"Do not draw a progress bar")

	return cmd
}

func newBenchSingleCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		path       string
		tuned      bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "bench-single",
		Short: "Measure lookup QPS from a single worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, g, path)
			if err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			runner := bench.NewRunner(benchConfig(cfg, tuned), logger)

			rep, err := runner.RunSingle(cmd.Context(), tuned)
			if err != nil {
				return fmt.Errorf("bench-single: %w", err)
			}

			return emitReport(cmd.OutOrStdout(), rep, outputJSON, g.verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&path, "path", config.DefaultStoragePath,
		"Database file to query")
	flags.BoolVar(&tuned, "tuned", false,
		"Apply the tuning pragmas before querying")
	flags.BoolVar(&outputJSON, "json", false,
		"Output the report as JSON")

	return cmd
}

func newBenchMultiCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		path       string
		workers    int
		tuned      bool
		isolation  string
		rateLimit  float64
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "bench-multi",
		Short: "Measure lookup QPS from a pool of workers",
		Long: fmt.Sprintf(`Run %d workload tasks per worker across a fixed pool of workers and
report total lookups over the wall-clock time of the whole pool. Every
task opens its own connection.`, bench.Oversubscription),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, g, path)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("rate") {
				cfg.RateLimit = rateLimit
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.ValidateWorkers(); err != nil {
				return err
			}

			if isolation != "goroutine" && isolation != "process" {
				return errs.Invalid(
					"unknown isolation %q (want goroutine or process)", isolation)
			}

			ctx := cmd.Context()

			if limit, err := bench.RaiseFileLimit(); err != nil {
				logger.WarnContext(ctx, "failed to raise open file limit",
					slog.String("error", err.Error()),
				)
			} else if limit > 0 {
				logger.DebugContext(ctx, "open file limit",
					slog.Uint64("limit", limit),
				)
			}

			runner := bench.NewRunner(benchConfig(cfg, tuned), logger)

			var rep report.RunReport

			if isolation == "process" {
				var hr *harness.Runner

				hr, err = harness.Self(workerArgs(cfg, g, tuned), nil, logger)
				if err != nil {
					return err
				}

				rep, err = runner.RunConcurrentProcesses(ctx, cfg.Workers, hr)
			} else {
				rep, err = runner.RunConcurrent(ctx, cfg.Workers)
			}

			if err != nil {
				return fmt.Errorf("bench-multi: %w", err)
			}

			return emitReport(cmd.OutOrStdout(), rep, outputJSON, g.verbose)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&path, "path", config.DefaultStoragePath,
		"Database file to query")
	flags.IntVarP(&workers, "workers", "n", config.DefaultWorkers,
		"Number of workers in the pool")
	flags.BoolVar(&tuned, "tuned", false,
		"Apply the tuning pragmas in every worker")
	flags.StringVar(&isolation, "isolation", "goroutine",
		"Worker isolation: goroutine or process")
	flags.Float64Var(&rateLimit, "rate", 0,
		"Max lookups per second per task (0 = unlimited)")
	flags.BoolVar(&outputJSON, "json", false,
		"Output the report as JSON")

	return cmd
}

// workerArgs rebuilds the command line a worker process needs to run
// the same workload as the parent.
func workerArgs(cfg *config.Config, g *globalFlags, tuned bool) []string {
	args := []string{
		"worker",
		"--path", cfg.StoragePath,
		"--words", cfg.WordsPath,
		"--times", strconv.Itoa(cfg.Times),
		"--seed", strconv.FormatInt(cfg.Seed, 10),
		"--rate", strconv.FormatFloat(cfg.RateLimit, 'f', -1, 64),
	}

	if g.configPath != "" {
		args = append(args, "--config", g.configPath)
	}
	if tuned {
		args = append(args, "--tuned")
	}
	if g.verbose {
		args = append(args, "--verbose")
	}

	return args
}

func newWorkerCmd(logger *slog.Logger, g *globalFlags) *cobra.Command {
	var (
		path      string
		tuned     bool
		rateLimit float64
	)

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one workload and print its result as JSON",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, g, path)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("rate") {
				cfg.RateLimit = rateLimit
			}

			runner := bench.NewRunner(benchConfig(cfg, tuned), logger)

			start := time.Now()

			ops, err := runner.RunWorkload(cmd.Context(), tuned)
			if err != nil {
				// Report the failure on stdout too so the parent can
				// match its kind.
				if werr := harness.WriteResult(cmd.OutOrStdout(), harness.Result{
					Tuned: tuned,
					PID:   os.Getpid(),
					Error: err.Error(),
					Kind:  errs.KindOf(err),
				}); werr != nil {
					logger.WarnContext(cmd.Context(), "failed to write worker result",
						slog.String("error", werr.Error()),
					)
				}

				return fmt.Errorf("worker: %w", err)
			}

			return harness.WriteResult(cmd.OutOrStdout(), harness.Result{
				Operations: ops,
				ElapsedMs:  time.Since(start).Milliseconds(),
				Tuned:      tuned,
				PID:        os.Getpid(),
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&path, "path", config.DefaultStoragePath,
		"Database file to query")
	flags.BoolVar(&tuned, "tuned", false,
		"Apply the tuning pragmas before querying")
	flags.Float64Var(&rateLimit, "rate", 0,
		"Max lookups per second (0 = unlimited)")

	return cmd
}
