package backend

import (
	"context"

	"kpidash/internal/core"
	"kpidash/internal/sources"
	"kpidash/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result holds the dataset source new sessions start from and the baseline
// provider the calculator compares against.
type Result struct {
	Source   sources.DatasetSource
	Baseline core.BaselineProvider
	// History is nil unless baselines come from the history store.
	History *storage.HistoryRepository
	// Checks are pinged by the readiness probe.
	Checks  map[string]sources.HealthChecker
	Cleanup CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Source SourceType

	// File source
	DatasetPath string

	// Synthetic source; a seed_dataset.csv here replaces generated data
	DataDirectory string

	// Google Sheets source
	GoogleSpreadsheetID string
	GoogleSheetRange    string

	Baseline      BaselineMode
	HistoryDBPath string
	HistoryLabel  string
	// RandomSeed fixes the perturbation sequence; zero picks a random seed.
	RandomSeed uint64
}

// SourceType names where the initial dataset comes from.
type SourceType string

const (
	SyntheticSource SourceType = "synthetic"
	FileSource      SourceType = "file"
	SheetsSource    SourceType = "sheets"
)

// String implements fmt.Stringer
func (st SourceType) String() string {
	return string(st)
}

// IsValid returns true if the source type is valid
func (st SourceType) IsValid() bool {
	switch st {
	case SyntheticSource, FileSource, SheetsSource:
		return true
	default:
		return false
	}
}

// BaselineMode selects the baseline provider chain.
type BaselineMode string

const (
	PerturbationBaseline BaselineMode = "perturbation"
	// HistoryBaseline reads recorded totals and falls back to perturbation
	// for metrics with no recording.
	HistoryBaseline BaselineMode = "history"
)

// IsValid returns true if the baseline mode is valid
func (m BaselineMode) IsValid() bool {
	return m == PerturbationBaseline || m == HistoryBaseline
}
