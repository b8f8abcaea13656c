// Package generate builds the kv dataset the benchmarks read: one row
// per word, each paired with a fresh random UUID.
package generate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/weiihann/sqbench/store"
	"github.com/weiihann/sqbench/workload"
)

// Progress receives one tick per inserted row.
type Progress interface {
	Increment()
	Finish()
}

// ProgressFunc creates a Progress for a run inserting total rows.
type ProgressFunc func(total int64) Progress

// Config controls a generation run.
type Config struct {
	StoragePath string
	WordsPath   string
	Seed        int64
	// Tuning is applied before the table is rebuilt.
	Tuning store.Tuning
}

// Result describes a finished generation run.
type Result struct {
	Records   int
	LastRowID int64
	Elapsed   time.Duration
}

// Run drops and recreates the kv table at cfg.StoragePath and inserts
// one record per word. Existing data is replaced, never merged.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	cfg Config,
	newProgress ProgressFunc,
) (Result, error) {
	start := time.Now()

	words, err := workload.NewLoader(cfg.WordsPath, cfg.Seed).Load()
	if err != nil {
		return Result{}, err
	}

	db, err := store.Create(ctx, cfg.StoragePath)
	if err != nil {
		return Result{}, err
	}
	defer db.Close()

	if err := db.ApplyTuning(ctx, cfg.Tuning); err != nil {
		return Result{}, err
	}

	if err := db.Recreate(ctx); err != nil {
		return Result{}, err
	}

	records := Records(words)

	logger.InfoContext(ctx, "inserting records",
		slog.String("storage", cfg.StoragePath),
		slog.Int("records", len(records)),
	)

	var onInsert func()

	if newProgress != nil {
		p := newProgress(int64(len(records)))
		defer p.Finish()

		onInsert = p.Increment
	}

	lastID, err := db.BulkInsert(ctx, records, onInsert)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Records:   len(records),
		LastRowID: lastID,
		Elapsed:   time.Since(start),
	}

	logger.InfoContext(ctx, "dataset generated",
		slog.Int("records", res.Records),
		slog.Int64("last_row_id", res.LastRowID),
		slog.Duration("elapsed", res.Elapsed),
	)

	return res, nil
}

// Records pairs every word with a new random UUID.
func Records(words []string) []store.Record {
	records := make([]store.Record, len(words))
	for i, w := range words {
		records[i] = store.Record{Key: w, Value: uuid.NewString()}
	}

	return records
}
