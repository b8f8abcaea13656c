package store

import (
	"context"
	"fmt"

	"github.com/weiihann/sqbench/errs"
)

// DefaultMmapSize is the memory-mapped I/O window applied by
// DefaultTuning, in bytes.
const DefaultMmapSize int64 = 30_000_000_000

// Tuning selects engine pragmas that trade durability for speed.
type Tuning struct {
	// DurabilityRelaxed switches to WAL journaling with
	// synchronous=NORMAL.
	DurabilityRelaxed bool `json:"durability_relaxed" yaml:"durability_relaxed"`
	// InMemoryTemp keeps temporary tables and indices in memory.
	InMemoryTemp bool `json:"in_memory_temp" yaml:"in_memory_temp"`
	// MmapSize bounds the memory-mapped I/O window. Zero leaves the
	// engine default in place.
	MmapSize int64 `json:"mmap_size" yaml:"mmap_size"`
}

// DefaultTuning enables every option.
func DefaultTuning() Tuning {
	return Tuning{
		DurabilityRelaxed: true,
		InMemoryTemp:      true,
		MmapSize:          DefaultMmapSize,
	}
}

// Pragmas returns the statements t translates to, in execution order.
func (t Tuning) Pragmas() []string {
	var pragmas []string

	if t.DurabilityRelaxed {
		pragmas = append(pragmas,
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
		)
	}

	if t.InMemoryTemp {
		pragmas = append(pragmas, "PRAGMA temp_store = MEMORY")
	}

	if t.MmapSize > 0 {
		pragmas = append(pragmas,
			fmt.Sprintf("PRAGMA mmap_size = %d", t.MmapSize))
	}

	return pragmas
}

// ApplyTuning runs the pragmas t selects on the handle's connection.
func (d *DB) ApplyTuning(ctx context.Context, t Tuning) error {
	for _, pragma := range t.Pragmas() {
		if _, err := d.db.ExecContext(ctx, pragma); err != nil {
			return errs.Wrap(errs.KindConnection,
				fmt.Sprintf("apply %q", pragma), err)
		}
	}

	return nil
}
