// Package backend wires the configured dataset source and baseline chain.
package backend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"kpidash/internal/baseline"
	"kpidash/internal/core"
	"kpidash/internal/log"
	"kpidash/internal/sources"
	"kpidash/internal/sources/file"
	"kpidash/internal/sources/google"
	"kpidash/internal/sources/memory"
	"kpidash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	// openHistory is replaced in tests.
	openHistory func(path string) (*storage.HistoryRepository, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger:      logger.WithComponent(log.ComponentSource),
		openHistory: storage.NewHistoryRepository,
	}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// The source and the perturbation must not share a generator.
	seed := config.RandomSeed
	if seed == 0 {
		seed = rand.Uint64()
	}
	res := &Result{Checks: make(map[string]sources.HealthChecker)}

	source, err := f.createSource(ctx, config, newRand(seed, dataStream))
	if err != nil {
		return nil, err
	}
	res.Source = source
	if hc, ok := source.(sources.HealthChecker); ok {
		res.Checks[config.Source.String()] = hc
	}

	perturb, err := baseline.NewPerturbation(newRand(seed, baselineStream), baseline.DefaultMinRatio, baseline.DefaultMaxRatio)
	if err != nil {
		return nil, err
	}
	res.Baseline = perturb

	if config.Baseline == HistoryBaseline {
		repo, err := f.openHistory(config.HistoryDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		res.History = repo
		res.Checks["history"] = repo
		res.Cleanup = repo.Close
		res.Baseline = baseline.Chain{baseline.NewHistory(repo, config.HistoryLabel), perturb}
	}

	f.logger.Info("Initialized backend",
		"source", source.Name(),
		"baseline", string(config.Baseline),
		"history_label", config.HistoryLabel)

	return res, nil
}

func (f *DefaultFactory) createSource(ctx context.Context, config Config, rng *rand.Rand) (sources.DatasetSource, error) {
	switch config.Source {
	case SyntheticSource:
		return memory.NewFromFiles(config.DataDirectory, rng), nil
	case FileSource:
		src := file.New(config.DatasetPath)
		if _, err := src.Load(ctx); err != nil {
			return nil, fmt.Errorf("failed to load dataset file: %w", err)
		}
		return src, nil
	case SheetsSource:
		cli, err := google.New(ctx, config.GoogleSpreadsheetID, config.GoogleSheetRange)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported source type %q (valid: %v)", config.Source, SourceTypeStrings())
	}
}

// NewCalculator returns the dashboard calculator over the result's baseline
// chain, with Profit as the derived metric.
func (r *Result) NewCalculator() (*core.Calculator, error) {
	if r == nil || r.Baseline == nil {
		return nil, errors.New("backend has no baseline provider")
	}
	return core.NewCalculator(r.Baseline, core.Profit), nil
}

// PCG stream selectors for the generators derived from one seed.
const (
	dataStream     uint64 = 0x9e3779b97f4a7c15
	baselineStream uint64 = 0xbf58476d1ce4e5b9
)

func newRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^stream))
}
