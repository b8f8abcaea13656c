package generate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/weiihann/sqbench/errs"
	"github.com/weiihann/sqbench/store"
)

type countingProgress struct {
	total    int64
	ticks    int64
	finished bool
}

func (c *countingProgress) Increment() { c.ticks++ }
func (c *countingProgress) Finish()    { c.finished = true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeWords(t *testing.T, dir string, words ...string) string {
	t.Helper()

	path := filepath.Join(dir, "words")
	if err := os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write words: %v", err)
	}

	return path
}

func TestRunInsertsOneRowPerWord(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Config{
		StoragePath: filepath.Join(dir, "kv.db"),
		WordsPath:   writeWords(t, dir, "alpha", "beta", "gamma"),
		Seed:        1,
		Tuning:      store.DefaultTuning(),
	}

	prog := &countingProgress{}

	res, err := Run(ctx, testLogger(), cfg, func(total int64) Progress {
		prog.total = total
		return prog
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Records != 3 {
		t.Errorf("records = %d, want 3", res.Records)
	}
	if res.LastRowID != 3 {
		t.Errorf("last row id = %d, want 3", res.LastRowID)
	}
	if prog.total != 3 || prog.ticks != 3 || !prog.finished {
		t.Errorf("progress = %+v, want total=3 ticks=3 finished", prog)
	}

	db, err := store.Open(ctx, cfg.StoragePath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	for _, w := range []string{"alpha", "beta", "gamma"} {
		v, err := db.Lookup(ctx, w)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", w, err)
		}
		if _, err := uuid.Parse(v); err != nil {
			t.Errorf("value for %q is not a UUID: %q", w, v)
		}
	}
}

func TestRunTwiceReplacesData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := Config{
		StoragePath: filepath.Join(dir, "kv.db"),
		WordsPath:   writeWords(t, dir, "alpha", "beta", "gamma", "delta"),
	}

	for run := range 2 {
		if _, err := Run(ctx, testLogger(), cfg, nil); err != nil {
			t.Fatalf("run %d failed: %v", run, err)
		}

		db, err := store.Open(ctx, cfg.StoragePath)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}

		n, err := db.Count(ctx)
		db.Close()

		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if n != 4 {
			t.Errorf("run %d: count = %d, want 4", run, n)
		}
	}
}

func TestRunDuplicateWord(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{
		StoragePath: filepath.Join(dir, "kv.db"),
		WordsPath:   writeWords(t, dir, "alpha", "beta", "alpha"),
	}

	_, err := Run(context.Background(), testLogger(), cfg, nil)
	if !errors.Is(err, errs.ErrDuplicateKey) {
		t.Errorf("err = %v, want DUPLICATE_KEY", err)
	}
}

func TestRunMissingSource(t *testing.T) {
	dir := t.TempDir()

	cfg := Config{
		StoragePath: filepath.Join(dir, "kv.db"),
		WordsPath:   filepath.Join(dir, "missing"),
	}

	_, err := Run(context.Background(), testLogger(), cfg, nil)
	if !errors.Is(err, errs.ErrSourceUnavailable) {
		t.Errorf("err = %v, want SOURCE_UNAVAILABLE", err)
	}

	if _, statErr := os.Stat(cfg.StoragePath); !os.IsNotExist(statErr) {
		t.Error("database should not be created when the source is unavailable")
	}
}

func TestRecordsUniqueValues(t *testing.T) {
	records := Records([]string{"alpha", "beta", "gamma"})

	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.Value] {
			t.Errorf("duplicate value %q", r.Value)
		}
		seen[r.Value] = true
	}

	if records[1].Key != "beta" {
		t.Errorf("records[1].Key = %q, want beta", records[1].Key)
	}
}
