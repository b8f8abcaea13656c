// Package bench drives point-lookup workloads against the kv store and
// measures their throughput, either inline on the caller's goroutine or
// fanned out over a fixed pool of isolated workers.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/weiihann/sqbench/errs"
	"github.com/weiihann/sqbench/report"
	"github.com/weiihann/sqbench/store"
	"github.com/weiihann/sqbench/workload"
)

// Config is passed to the drivers at construction. Defaults are the
// CLI's business; the drivers use exactly what they are given.
type Config struct {
	StoragePath string
	WordsPath   string
	// Times is the number of passes over the key sequence per workload.
	Times int
	// Seed drives the key shuffle. Zero shuffles differently per call.
	Seed int64
	// Tuning is applied whenever a workload runs in tuned mode.
	Tuning store.Tuning
	// Tuned makes multi-worker tasks run in tuned mode.
	Tuned bool
	// RateLimit caps lookups per second for each workload. Zero means
	// unlimited.
	RateLimit float64
}

// Validate rejects configurations no workload can run with.
func (c Config) Validate() error {
	if c.Times < 1 {
		return errs.Invalid("times must be >= 1, got %d", c.Times)
	}
	if c.RateLimit < 0 {
		return errs.Invalid("rate limit must be >= 0, got %v", c.RateLimit)
	}

	return nil
}

// Runner executes workloads described by a Config.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// RunWorkload loads its own copy of the keys, opens its own
// connection, and sweeps the keys Times times issuing one lookup per
// key. Lookup values are discarded and missing keys are not an error.
// It returns the number of lookups issued, len(keys) * Times.
func (r *Runner) RunWorkload(ctx context.Context, tuned bool) (int64, error) {
	if err := r.cfg.Validate(); err != nil {
		return 0, err
	}

	keys, err := workload.NewLoader(r.cfg.WordsPath, r.cfg.Seed).Load()
	if err != nil {
		return 0, err
	}

	db, err := store.Open(ctx, r.cfg.StoragePath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if tuned {
		if err := db.ApplyTuning(ctx, r.cfg.Tuning); err != nil {
			return 0, err
		}
	}

	var limiter *rate.Limiter
	if r.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.RateLimit), 1)
	}

	w := workload.Workload{Keys: keys, Times: r.cfg.Times}

	for pass := 0; pass < w.Times; pass++ {
		for _, key := range w.Keys {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return 0, fmt.Errorf("rate limiter: %w", err)
				}
			}

			if _, err := db.Lookup(ctx, key); err != nil &&
				!errors.Is(err, store.ErrNotFound) {
				return 0, err
			}
		}
	}

	return w.Operations(), nil
}

// RunSingle times one RunWorkload on the calling goroutine.
func (r *Runner) RunSingle(ctx context.Context, tuned bool) (report.RunReport, error) {
	r.logger.InfoContext(ctx, "starting single-worker benchmark",
		slog.String("storage", r.cfg.StoragePath),
		slog.Int("times", r.cfg.Times),
		slog.Bool("tuned", tuned),
	)

	start := time.Now()

	ops, err := r.RunWorkload(ctx, tuned)
	if err != nil {
		return report.RunReport{}, err
	}

	rep := report.RunReport{
		Mode:            "single",
		Workers:         1,
		Tasks:           1,
		TotalOperations: ops,
		Elapsed:         time.Since(start),
	}

	r.logger.InfoContext(ctx, "single-worker benchmark complete",
		slog.Int64("operations", rep.TotalOperations),
		slog.Duration("elapsed", rep.Elapsed),
	)

	return rep, nil
}

// RunConcurrent fans RunWorkload out over a pool of workers goroutines.
// Each task opens its own connection; tuning follows Config.Tuned.
func (r *Runner) RunConcurrent(ctx context.Context, workers int) (report.RunReport, error) {
	if err := r.cfg.Validate(); err != nil {
		return report.RunReport{}, err
	}

	pool := &Pool{
		Workers: workers,
		Task: func(ctx context.Context) (int64, error) {
			return r.RunWorkload(ctx, r.cfg.Tuned)
		},
		Logger: r.logger,
	}

	return r.runPool(ctx, pool, "multi")
}

func (r *Runner) runPool(ctx context.Context, pool *Pool, mode string) (report.RunReport, error) {
	r.logger.InfoContext(ctx, "starting multi-worker benchmark",
		slog.String("mode", mode),
		slog.String("storage", r.cfg.StoragePath),
		slog.Int("workers", pool.Workers),
		slog.Int("times", r.cfg.Times),
		slog.Bool("tuned", r.cfg.Tuned),
	)

	rep, err := pool.Run(ctx)
	if err != nil {
		return report.RunReport{}, err
	}

	rep.Mode = mode

	r.logger.InfoContext(ctx, "multi-worker benchmark complete",
		slog.Int("tasks", rep.Tasks),
		slog.Int64("operations", rep.TotalOperations),
		slog.Duration("elapsed", rep.Elapsed),
	)

	return rep, nil
}
