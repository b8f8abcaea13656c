package bench

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/sqbench/errs"
	"github.com/weiihann/sqbench/report"
)

// Oversubscription is the number of tasks submitted per worker. It
// scales the total work of a run.
const Oversubscription = 2

// Task runs one workload and returns the operations it processed.
type Task func(ctx context.Context) (int64, error)

// Pool runs Oversubscription*Workers copies of Task on exactly Workers
// goroutines.
type Pool struct {
	Workers int
	Task    Task
	Logger  *slog.Logger
}

// Run submits every task, waits for all of them, and reports total
// operations over the wall-clock span from before the first worker
// starts to after the last one returns. The first failing task fails
// the run; no partial report is produced.
func (p *Pool) Run(ctx context.Context) (report.RunReport, error) {
	if p.Workers < 1 {
		return report.RunReport{}, errs.Invalid(
			"workers must be >= 1, got %d", p.Workers)
	}

	tasks := Oversubscription * p.Workers

	slots := make(chan int, tasks)
	for i := range tasks {
		slots <- i
	}
	close(slots)

	// Each slot is written by exactly one worker.
	ops := make([]int64, tasks)

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)

	for w := range p.Workers {
		g.Go(func() error {
			for slot := range slots {
				if err := gctx.Err(); err != nil {
					return errs.Wrap(errs.KindWorkerFailure,
						fmt.Sprintf("worker %d cancelled", w), err)
				}

				n, err := p.Task(gctx)
				if err != nil {
					return errs.Wrap(errs.KindWorkerFailure,
						fmt.Sprintf("task %d on worker %d", slot, w), err)
				}

				ops[slot] = n

				if p.Logger != nil {
					p.Logger.DebugContext(gctx, "task finished",
						slog.Int("task", slot),
						slog.Int("worker", w),
						slog.Int64("operations", n),
					)
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report.RunReport{}, err
	}

	elapsed := time.Since(start)

	var total int64
	for _, n := range ops {
		total += n
	}

	return report.RunReport{
		Workers:         p.Workers,
		Tasks:           tasks,
		TotalOperations: total,
		Elapsed:         elapsed,
	}, nil
}
