// Package baseline provides the comparison values the calculator measures
// current totals against.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
)

// Default perturbation bounds for the synthetic previous period.
const (
	DefaultMinRatio = 0.8
	DefaultMaxRatio = 1.2
)

// Ensure interface conformance
var (
	_ core.BaselineProvider = (*Perturbation)(nil)
	_ core.BaselineProvider = Fixed(nil)
	_ core.BaselineProvider = Chain(nil)
)

// Perturbation stands in for a previous period by scaling the current total
// with a ratio drawn uniformly from [Min, Max].
type Perturbation struct {
	mu  sync.Mutex
	rng *rand.Rand
	min float64
	max float64
}

// NewPerturbation returns a provider drawing ratios from rng.
func NewPerturbation(rng *rand.Rand, minRatio, maxRatio float64) (*Perturbation, error) {
	if rng == nil {
		return nil, errors.New("nil random source")
	}
	if minRatio <= 0 || maxRatio < minRatio {
		return nil, fmt.Errorf("invalid ratio bounds [%v, %v]", minRatio, maxRatio)
	}
	return &Perturbation{rng: rng, min: minRatio, max: maxRatio}, nil
}

// NewSeededPerturbation uses a PCG source so runs are reproducible.
func NewSeededPerturbation(seed uint64) *Perturbation {
	p, _ := NewPerturbation(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), DefaultMinRatio, DefaultMaxRatio)
	return p
}

// Baseline implements core.BaselineProvider.
func (p *Perturbation) Baseline(_ context.Context, _ string, current decimal.Decimal) (decimal.Decimal, error) {
	p.mu.Lock()
	r := p.min + p.rng.Float64()*(p.max-p.min)
	p.mu.Unlock()
	return current.Mul(decimal.NewFromFloat(r)), nil
}

// Fixed returns supplied values per metric (case-insensitive).
type Fixed map[string]decimal.Decimal

// Baseline implements core.BaselineProvider.
func (f Fixed) Baseline(_ context.Context, metric string, _ decimal.Decimal) (decimal.Decimal, error) {
	for k, v := range f {
		if strings.EqualFold(k, metric) {
			return v, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s", core.ErrNoBaseline, metric)
}

// Chain asks each provider in turn and falls through on core.ErrNoBaseline.
type Chain []core.BaselineProvider

// Baseline implements core.BaselineProvider.
func (c Chain) Baseline(ctx context.Context, metric string, current decimal.Decimal) (decimal.Decimal, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		v, err := p.Baseline(ctx, metric, current)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, core.ErrNoBaseline) {
			return decimal.Zero, err
		}
	}
	return decimal.Zero, fmt.Errorf("%w: %s", core.ErrNoBaseline, metric)
}
