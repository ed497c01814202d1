package memory

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"kpidash/internal/core"
	"kpidash/internal/ingest"
	ports "kpidash/internal/sources"
)

// SeedFile is looked up in the data directory by NewFromFiles.
const SeedFile = "seed_dataset.csv"

var _ ports.DatasetSource = (*Store)(nil)

// Store serves a fixed dataset, or a freshly generated synthetic table for
// every Load when none is set.
type Store struct {
	mu   sync.Mutex
	ds   *core.Dataset
	rng  *rand.Rand
	name string
}

// New returns a store that always serves ds.
func New(ds core.Dataset) *Store {
	return &Store{ds: &ds, name: "memory"}
}

// NewSynthetic returns a store generating a new table on each Load.
func NewSynthetic(rng *rand.Rand) *Store {
	return &Store{rng: rng, name: ingest.SyntheticSource}
}

// NewFromFiles serves base/seed_dataset.csv when it parses, otherwise
// synthetic data.
func NewFromFiles(base string, rng *rand.Rand) *Store {
	path := filepath.Join(base, SeedFile)
	f, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Cannot open seed dataset, using synthetic data", "path", path, "error", err)
		}
		return NewSynthetic(rng)
	}
	defer f.Close()

	ds, err := ingest.ParseCSV(f, SeedFile)
	if err != nil {
		slog.Warn("Invalid seed dataset, using synthetic data", "path", path, "error", err)
		return NewSynthetic(rng)
	}
	s := New(ds)
	s.name = "seed"
	return s
}

// Load implements sources.DatasetSource.
func (s *Store) Load(_ context.Context) (core.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ds != nil {
		return *s.ds, nil
	}
	return ingest.Synthetic(s.rng), nil
}

// Name implements sources.DatasetSource.
func (s *Store) Name() string { return s.name }
