package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Runner launches worker processes from a single binary.
type Runner struct {
	BinaryPath string
	// Args are passed to every worker, typically the hidden worker
	// subcommand followed by its flags.
	Args   []string
	Env    []string
	Logger *slog.Logger
}

// NewRunner creates a Runner. Env is appended to the inherited
// environment.
func NewRunner(
	binaryPath string,
	args, env []string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		BinaryPath: binaryPath,
		Args:       args,
		Env:        env,
		Logger:     logger.With(slog.String("binary", binaryPath)),
	}
}

// Self returns a Runner that re-executes the current binary.
func Self(args, env []string, logger *slog.Logger) (*Runner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	return NewRunner(exe, args, env, logger), nil
}

// Run executes one worker process and returns its parsed result. When
// the child exits non-zero, the failure it reported on stdout is
// returned with its original kind; failing that, its stderr is
// surfaced in the error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	cmd := exec.CommandContext(ctx, r.BinaryPath, r.Args...)

	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.Logger.DebugContext(ctx, "starting worker process",
		slog.Any("args", r.Args),
	)

	wallStart := time.Now()

	if err := cmd.Run(); err != nil {
		if res, perr := ParseResult(&stdout); perr == nil && res.Err() != nil {
			return nil, res.Err()
		}

		return nil, fmt.Errorf(
			"worker process failed: %w\nstderr: %s",
			err, stderr.String(),
		)
	}

	result, err := ParseResult(&stdout)
	if err != nil {
		return nil, fmt.Errorf(
			"parse worker output: %w\nstdout: %s",
			err, stdout.String(),
		)
	}

	r.Logger.DebugContext(ctx, "worker process finished",
		slog.Int("pid", result.PID),
		slog.Int64("operations", result.Operations),
		slog.Duration("wall_time", time.Since(wallStart)),
	)

	return result, nil
}

// ParseResult decodes a worker's JSON result.
func ParseResult(r io.Reader) (*Result, error) {
	var result Result
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}

	if result.Operations < 0 {
		return nil, fmt.Errorf("negative operation count %d", result.Operations)
	}

	return &result, nil
}

// WriteResult encodes res for the parent process to parse.
func WriteResult(w io.Writer, res Result) error {
	return json.NewEncoder(w).Encode(res)
}
