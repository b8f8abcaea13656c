package bench

import (
	"context"

	"github.com/weiihann/sqbench/harness"
	"github.com/weiihann/sqbench/report"
)

// ProcessTask returns a Task that runs each workload in a child
// process launched by hr.
func ProcessTask(hr *harness.Runner) Task {
	return func(ctx context.Context) (int64, error) {
		res, err := hr.Run(ctx)
		if err != nil {
			return 0, err
		}

		return res.Operations, nil
	}
}

// RunConcurrentProcesses is RunConcurrent with every task in its own
// OS process. hr must launch a worker that runs one workload with this
// runner's configuration.
func (r *Runner) RunConcurrentProcesses(
	ctx context.Context,
	workers int,
	hr *harness.Runner,
) (report.RunReport, error) {
	if err := r.cfg.Validate(); err != nil {
		return report.RunReport{}, err
	}

	pool := &Pool{
		Workers: workers,
		Task:    ProcessTask(hr),
		Logger:  r.logger,
	}

	return r.runPool(ctx, pool, "multi-process")
}
