package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/weiihann/sqbench/config"
	"github.com/weiihann/sqbench/errs"
)

// runMainEnv makes the test binary behave as sqbench itself, so
// process isolation can re-execute it as a worker.
const runMainEnv = "SQBENCH_TEST_RUN_MAIN"

func TestMain(m *testing.M) {
	if os.Getenv(runMainEnv) == "1" {
		main()
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := newRootCmd(logger, new(slog.LevelVar))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func setup(t *testing.T) (dbPath, wordsPath string) {
	t.Helper()

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "kv.db")
	wordsPath = filepath.Join(dir, "words")

	if err := os.WriteFile(wordsPath, []byte("alpha\nbeta\ngamma\n"), 0o644); err != nil {
		t.Fatalf("write words: %v", err)
	}

	return dbPath, wordsPath
}

func generateDB(t *testing.T, dbPath, wordsPath string) {
	t.Helper()

	out, err := execute(t, "generate", "--path", dbPath, "--words", wordsPath, "--quiet")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if strings.TrimSpace(out) != "3" {
		t.Errorf("generate printed %q, want last row id 3", out)
	}
}

func TestGenerateTwice(t *testing.T) {
	dbPath, wordsPath := setup(t)

	generateDB(t, dbPath, wordsPath)
	generateDB(t, dbPath, wordsPath)
}

func TestBenchSingle(t *testing.T) {
	dbPath, wordsPath := setup(t)
	generateDB(t, dbPath, wordsPath)

	for _, extra := range [][]string{nil, {"--tuned"}} {
		args := append([]string{"bench-single", "--path", dbPath, "--words", wordsPath, "--times", "2"}, extra...)

		out, err := execute(t, args...)
		if err != nil {
			t.Fatalf("bench-single %v failed: %v", extra, err)
		}

		if !strings.HasPrefix(out, "qps: ") {
			t.Errorf("bench-single %v printed %q, want qps line", extra, out)
		}
	}
}

func TestBenchSingleMissingStorage(t *testing.T) {
	dbPath, wordsPath := setup(t)

	out, err := execute(t, "bench-single", "--path", dbPath, "--words", wordsPath)
	if !errors.Is(err, errs.ErrConnection) {
		t.Errorf("err = %v, want CONNECTION", err)
	}

	if strings.Contains(out, "qps:") {
		t.Errorf("failed run printed %q", out)
	}
}

func TestBenchSingleIgnoresWorkers(t *testing.T) {
	dbPath, wordsPath := setup(t)
	generateDB(t, dbPath, wordsPath)

	t.Setenv("SQBENCH_WORKERS", "0")

	out, err := execute(t, "bench-single", "--path", dbPath, "--words", wordsPath, "--times", "1")
	if err != nil {
		t.Fatalf("bench-single failed: %v", err)
	}
	if !strings.HasPrefix(out, "qps: ") {
		t.Errorf("bench-single printed %q, want qps line", out)
	}
}

func TestBenchMultiWorkersFromEnv(t *testing.T) {
	t.Setenv("SQBENCH_WORKERS", "0")

	_, err := execute(t, "bench-multi", "--path", "/nonexistent/kv.db")
	if !errors.Is(err, errs.ErrInvalidConfiguration) {
		t.Errorf("err = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestBenchMulti(t *testing.T) {
	dbPath, wordsPath := setup(t)
	generateDB(t, dbPath, wordsPath)

	out, err := execute(t, "bench-multi", "--path", dbPath, "--words", wordsPath,
		"--times", "2", "--workers", "3", "--json")
	if err != nil {
		t.Fatalf("bench-multi failed: %v", err)
	}

	var parsed struct {
		Tasks           int     `json:"tasks"`
		TotalOperations int64   `json:"total_operations"`
		QPS             float64 `json:"qps"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	if parsed.Tasks != 6 {
		t.Errorf("tasks = %d, want 6", parsed.Tasks)
	}
	if parsed.TotalOperations != 36 {
		t.Errorf("total_operations = %d, want 36", parsed.TotalOperations)
	}
	if parsed.QPS <= 0 {
		t.Errorf("qps = %v, want > 0", parsed.QPS)
	}
}

func TestBenchMultiInvalidWorkers(t *testing.T) {
	for _, workers := range []string{"0", "-3"} {
		out, err := execute(t, "bench-multi", "--path", "/nonexistent/kv.db", "--workers="+workers)
		if !errors.Is(err, errs.ErrInvalidConfiguration) {
			t.Errorf("workers=%s: err = %v, want INVALID_CONFIGURATION", workers, err)
		}
		if out != "" {
			t.Errorf("workers=%s: printed %q", workers, out)
		}
	}
}

func TestBenchMultiUnknownIsolation(t *testing.T) {
	_, err := execute(t, "bench-multi", "--isolation", "fiber")
	if !errors.Is(err, errs.ErrInvalidConfiguration) {
		t.Errorf("err = %v, want INVALID_CONFIGURATION", err)
	}
}

func TestWorkerPrintsResult(t *testing.T) {
	dbPath, wordsPath := setup(t)
	generateDB(t, dbPath, wordsPath)

	out, err := execute(t, "worker", "--path", dbPath, "--words", wordsPath, "--times", "2")
	if err != nil {
		t.Fatalf("worker failed: %v", err)
	}

	var parsed struct {
		Operations int64 `json:"operations"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	if parsed.Operations != 6 {
		t.Errorf("operations = %d, want 6", parsed.Operations)
	}
}

func TestWorkerArgs(t *testing.T) {
	cfg := config.Default()
	cfg.StoragePath = "/data/kv.db"
	cfg.WordsPath = "/data/words"
	cfg.Seed = 7

	g := &globalFlags{configPath: "/etc/sqbench.yaml"}

	args := strings.Join(workerArgs(cfg, g, true), " ")

	for _, want := range []string{
		"worker",
		"--path /data/kv.db",
		"--words /data/words",
		"--times 4",
		"--seed 7",
		"--rate 0",
		"--config /etc/sqbench.yaml",
		"--tuned",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("worker args %q missing %q", args, want)
		}
	}

	if strings.Contains(args, "--verbose") {
		t.Errorf("worker args %q should not carry --verbose", args)
	}
}

func TestBenchMultiProcessIsolation(t *testing.T) {
	dbPath, wordsPath := setup(t)
	generateDB(t, dbPath, wordsPath)

	t.Setenv(runMainEnv, "1")

	out, err := execute(t, "bench-multi", "--path", dbPath, "--words", wordsPath,
		"--times", "2", "--workers", "2", "--isolation", "process", "--json")
	if err != nil {
		t.Fatalf("bench-multi --isolation process failed: %v", err)
	}

	var parsed struct {
		Mode            string `json:"mode"`
		Tasks           int    `json:"tasks"`
		TotalOperations int64  `json:"total_operations"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	if parsed.Mode != "multi-process" {
		t.Errorf("mode = %q, want multi-process", parsed.Mode)
	}
	if parsed.Tasks != 4 {
		t.Errorf("tasks = %d, want 4", parsed.Tasks)
	}
	if parsed.TotalOperations != 24 {
		t.Errorf("total_operations = %d, want 24", parsed.TotalOperations)
	}
}

func TestBenchMultiProcessMissingStorage(t *testing.T) {
	dbPath, wordsPath := setup(t)

	t.Setenv(runMainEnv, "1")

	_, err := execute(t, "bench-multi", "--path", dbPath, "--words", wordsPath,
		"--workers", "2", "--isolation", "process")
	if !errors.Is(err, errs.ErrWorkerFailure) {
		t.Fatalf("err = %v, want WORKER_FAILURE", err)
	}
	if !errors.Is(err, errs.ErrConnection) {
		t.Errorf("err = %v, want the worker's CONNECTION kind", err)
	}
}

func TestWorkerReportsFailureKind(t *testing.T) {
	dbPath, wordsPath := setup(t)

	out, err := execute(t, "worker", "--path", dbPath, "--words", wordsPath)
	if !errors.Is(err, errs.ErrConnection) {
		t.Errorf("err = %v, want CONNECTION", err)
	}

	var parsed struct {
		Kind  string `json:"kind"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	if parsed.Kind != "CONNECTION" {
		t.Errorf("kind = %q, want CONNECTION", parsed.Kind)
	}
	if parsed.Error == "" {
		t.Error("error message is empty")
	}
}
