package baseline

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
	"kpidash/internal/storage"
)

// TotalsReader reads recorded prior-period totals. Missing entries are
// reported as storage.ErrNotFound.
type TotalsReader interface {
	LatestTotal(ctx context.Context, metric string) (decimal.Decimal, error)
	TotalForLabel(ctx context.Context, label, metric string) (decimal.Decimal, error)
}

// History looks baselines up in recorded prior-period totals. With an empty
// label it uses the most recent recording of each metric.
type History struct {
	reader TotalsReader
	label  string
}

var (
	_ core.BaselineProvider = (*History)(nil)
	_ TotalsReader          = (*storage.HistoryRepository)(nil)
)

// NewHistory returns a provider backed by reader.
func NewHistory(reader TotalsReader, label string) *History {
	return &History{reader: reader, label: label}
}

// Baseline implements core.BaselineProvider.
func (h *History) Baseline(ctx context.Context, metric string, _ decimal.Decimal) (decimal.Decimal, error) {
	var (
		v   decimal.Decimal
		err error
	)
	if h.label == "" {
		v, err = h.reader.LatestTotal(ctx, metric)
	} else {
		v, err = h.reader.TotalForLabel(ctx, h.label, metric)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s", core.ErrNoBaseline, metric)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("read history for %s: %w", metric, err)
	}
	return v, nil
}
