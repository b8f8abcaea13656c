// Package harness runs a workload pass in a child process and collects
// its result. It backs process isolation in multi-worker runs: each
// child opens its own storage connection in its own address space.
package harness

import (
	"errors"
	"fmt"

	"github.com/weiihann/sqbench/errs"
)

// Result is the JSON document a worker process writes to stdout.
type Result struct {
	Operations int64 `json:"operations"`
	ElapsedMs  int64 `json:"elapsed_ms"`
	Tuned      bool  `json:"tuned"`
	PID        int   `json:"pid"`
	// Error and Kind are set when the worker failed. The worker still
	// exits non-zero; they let the parent keep the failure's kind.
	Error string    `json:"error,omitempty"`
	Kind  errs.Kind `json:"kind,omitempty"`
}

// Err rebuilds the worker's failure, or returns nil if it succeeded.
// The error matches the child's kind under errors.Is.
func (r *Result) Err() error {
	if r.Error == "" {
		return nil
	}

	cause := errors.New(r.Error)
	if r.Kind == "" {
		return fmt.Errorf("worker process %d: %w", r.PID, cause)
	}

	return errs.Wrap(r.Kind, fmt.Sprintf("worker process %d", r.PID), cause)
}
