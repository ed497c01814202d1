package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"kpidash/internal/core"
	"kpidash/internal/ingest"
	ports "kpidash/internal/sources"
)

var _ ports.DatasetSource = (*Source)(nil)

// Source reads a CSV file on every Load so edits are picked up by new sessions.
type Source struct {
	path string
}

func New(path string) *Source {
	return &Source{path: path}
}

// Load implements sources.DatasetSource.
func (s *Source) Load(_ context.Context) (core.Dataset, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ingest.ParseCSV(f, filepath.Base(s.path))
}

// Name implements sources.DatasetSource.
func (s *Source) Name() string { return "file:" + filepath.Base(s.path) }

// Ping reports whether the file is still readable.
func (s *Source) Ping(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}
