// Package workload loads the lookup keys a benchmark pass sweeps over.
// Keys come from a plain word list, one key per line, and are shuffled
// so consecutive lookups do not hit neighbouring pages of the index.
package workload

import (
	"bufio"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"strings"
	"time"

	"github.com/weiihann/sqbench/errs"
)

// Workload is a key sequence repeated for a number of passes.
type Workload struct {
	Keys  []string
	Times int
}

// Operations returns the number of lookups one run of w issues.
func (w Workload) Operations() int64 {
	return int64(len(w.Keys)) * int64(w.Times)
}

// Loader reads a word list from Path.
type Loader struct {
	Path string
	// Seed drives the shuffle. Zero seeds from the clock, so every call
	// gets a fresh order; any other value yields the same order on
	// every call.
	Seed int64
}

// NewLoader creates a Loader for the word list at path.
func NewLoader(path string, seed int64) *Loader {
	return &Loader{Path: path, Seed: seed}
}

// Load reads and shuffles the word list. The returned slice is owned by
// the caller; each call produces an independent copy.
func (l *Loader) Load() ([]string, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, errs.Wrap(errs.KindSourceUnavailable,
			fmt.Sprintf("open word source %s", l.Path), err)
	}
	defer f.Close()

	words, err := ReadWords(f)
	if err != nil {
		return nil, errs.Wrap(errs.KindSourceUnavailable,
			fmt.Sprintf("read word source %s", l.Path), err)
	}

	seed := l.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	Shuffle(words, mrand.New(mrand.NewSource(seed)))

	return words, nil
}

// ReadWords returns the non-blank, whitespace-trimmed lines of r in
// source order. Duplicates are kept.
func ReadWords(r io.Reader) ([]string, error) {
	var words []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}

		words = append(words, word)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

// Shuffle permutes words in place using rng.
func Shuffle(words []string, rng *mrand.Rand) {
	rng.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
}
