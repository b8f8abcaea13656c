// Package main provides the CLI entry point for sqbench, a point-lookup
// throughput benchmark for a SQLite key-value table.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	root := newRootCmd(logger, level)
	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	wordsPath  string
	times      int
	seed       int64
	verbose    bool
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "sqbench",
		Short: "SQLite key-value lookup benchmark",
		Long: `Sqbench builds a word -> UUID table in SQLite and measures how many
point lookups per second it sustains from one worker or from a pool of
workers, each holding its own connection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if g.verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "",
		"Path to a YAML config file")
	flags.StringVar(&g.wordsPath, "words", "",
		"Word list to load keys from (default /usr/share/dict/words)")
	flags.IntVar(&g.times, "times", 0,
		"Passes over the key list per workload (default 4)")
	flags.Int64Var(&g.seed, "seed", 0,
		"Shuffle seed (0 = different order every load)")
	flags.BoolVarP(&g.verbose, "verbose", "v", false,
		"Debug logging and a run summary on stderr")

	root.AddCommand(
		newGenerateCmd(logger, &g),
		newBenchSingleCmd(logger, &g),
		newBenchMultiCmd(logger, &g),
		newWorkerCmd(logger, &g),
	)

	return root
}
