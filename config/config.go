// Package config holds the defaults and file/env overrides for sqbench.
// The CLI resolves a Config once and hands the relevant pieces to the
// drivers; nothing below the CLI reads globals.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/weiihann/sqbench/errs"
	"github.com/weiihann/sqbench/store"
)

const (
	DefaultStoragePath = "../simplekv.db"
	DefaultWordsPath   = "/usr/share/dict/words"
	DefaultTimes       = 4
	DefaultWorkers     = 4
)

// Config is the resolved configuration for every subcommand.
type Config struct {
	// StoragePath is the SQLite database holding the kv table.
	StoragePath string `yaml:"storage_path"`

	// WordsPath is the word list keys are loaded from.
	WordsPath string `yaml:"words_path"`

	// Times is the number of passes each workload makes over the keys.
	Times int `yaml:"times"`

	// Workers is the default multi-worker pool size.
	Workers int `yaml:"workers"`

	// Seed drives key shuffling; zero shuffles differently every load.
	Seed int64 `yaml:"seed"`

	// RateLimit caps lookups per second per workload (0 = unlimited).
	RateLimit float64 `yaml:"rate_limit"`

	Tuning store.Tuning `yaml:"tuning"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StoragePath: DefaultStoragePath,
		WordsPath:   DefaultWordsPath,
		Times:       DefaultTimes,
		Workers:     DefaultWorkers,
		Tuning:      store.DefaultTuning(),
	}
}

// LoadFromFile overlays the YAML file at path on the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.KindInvalidConfiguration,
			fmt.Sprintf("parse config file %s", path), err)
	}

	return cfg, nil
}

// LoadFromEnv applies SQBENCH_* environment overrides to cfg.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("SQBENCH_STORAGE_PATH"); v != "" {
		cfg.StoragePath = v
	}
	if v := os.Getenv("SQBENCH_WORDS_PATH"); v != "" {
		cfg.WordsPath = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SQBENCH_TIMES", &cfg.Times},
		{"SQBENCH_WORKERS", &cfg.Workers},
	}

	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return errs.Invalid("%s: %v", e.name, err)
		}

		*e.dst = n
	}

	if v := os.Getenv("SQBENCH_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errs.Invalid("SQBENCH_SEED: %v", err)
		}

		cfg.Seed = n
	}

	if v := os.Getenv("SQBENCH_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errs.Invalid("SQBENCH_RATE_LIMIT: %v", err)
		}

		cfg.RateLimit = f
	}

	return nil
}

// Validate rejects values no run can use. Workers is only checked by
// ValidateWorkers, since single-worker runs never read it.
func (c *Config) Validate() error {
	if c.StoragePath == "" {
		return errs.Invalid("storage_path is required")
	}
	if c.WordsPath == "" {
		return errs.Invalid("words_path is required")
	}
	if c.Times < 1 {
		return errs.Invalid("times must be >= 1, got %d", c.Times)
	}
	if c.RateLimit < 0 {
		return errs.Invalid("rate_limit must be >= 0, got %v", c.RateLimit)
	}
	if c.Tuning.MmapSize < 0 {
		return errs.Invalid("tuning.mmap_size must be >= 0, got %d", c.Tuning.MmapSize)
	}

	return nil
}

// ValidateWorkers rejects a pool size no multi-worker run can use.
func (c *Config) ValidateWorkers() error {
	if c.Workers < 1 {
		return errs.Invalid("workers must be >= 1, got %d", c.Workers)
	}

	return nil
}
