package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Direction is the trend indicator shown next to a KPI.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

var (
	// ErrZeroBaseline marks a percent change that cannot be computed.
	ErrZeroBaseline = errors.New("baseline is zero")
	// ErrNoBaseline is returned by providers that have nothing for a metric.
	ErrNoBaseline = errors.New("no baseline available")
)

var hundred = decimal.NewFromInt(100)

// BaselineProvider supplies the comparison value for a metric total.
type BaselineProvider interface {
	Baseline(ctx context.Context, metric string, current decimal.Decimal) (decimal.Decimal, error)
}

// BaselineFunc adapts a plain function to BaselineProvider.
type BaselineFunc func(ctx context.Context, metric string, current decimal.Decimal) (decimal.Decimal, error)

// Baseline implements BaselineProvider.
func (f BaselineFunc) Baseline(ctx context.Context, metric string, current decimal.Decimal) (decimal.Decimal, error) {
	return f(ctx, metric, current)
}

// MetricSummary is the derived KPI for one metric. It is recomputed whenever
// the dataset changes and never stored.
type MetricSummary struct {
	Metric        string
	Derived       bool
	CurrentTotal  decimal.Decimal
	BaselineTotal decimal.Decimal
	// PercentChange is zero when ChangeDefined is false.
	PercentChange decimal.Decimal
	ChangeDefined bool
	Direction     Direction
}

// DerivedMetric is a KPI computed as Minuend - Subtrahend.
type DerivedMetric struct {
	Name       string
	Minuend    string
	Subtrahend string
}

// Profit is the derived metric shown next to sales and expenses.
var Profit = DerivedMetric{Name: "Profit", Minuend: "Sales", Subtrahend: "Expenses"}

// Total returns the exact sum of a column.
func Total(column []decimal.Decimal) (decimal.Decimal, error) {
	if len(column) == 0 {
		return decimal.Zero, ErrEmptyColumn
	}
	sum := decimal.Zero
	for _, v := range column {
		sum = sum.Add(v)
	}
	return sum, nil
}

// PercentChange returns (total - baseline) / baseline * 100.
func PercentChange(total, baseline decimal.Decimal) (decimal.Decimal, error) {
	if baseline.IsZero() {
		return decimal.Zero, ErrZeroBaseline
	}
	return total.Sub(baseline).Div(baseline).Mul(hundred), nil
}

// DirectionOf maps a change to up only when strictly positive.
func DirectionOf(change decimal.Decimal) Direction {
	if change.IsPositive() {
		return DirectionUp
	}
	return DirectionDown
}

// NewMetricSummary builds the summary for a current/baseline pair. A zero
// baseline yields an undefined change pointing down.
func NewMetricSummary(metric string, current, baseline decimal.Decimal) MetricSummary {
	s := MetricSummary{
		Metric:        metric,
		CurrentTotal:  current,
		BaselineTotal: baseline,
		Direction:     DirectionDown,
	}
	change, err := PercentChange(current, baseline)
	if err != nil {
		return s
	}
	s.PercentChange = change
	s.ChangeDefined = true
	s.Direction = DirectionOf(change)
	return s
}

// Calculator turns a dataset into per-metric summaries.
type Calculator struct {
	baseline BaselineProvider
	derived  []DerivedMetric
}

// NewCalculator returns a calculator using p for comparison values.
func NewCalculator(p BaselineProvider, derived ...DerivedMetric) *Calculator {
	return &Calculator{baseline: p, derived: derived}
}

// Summarize computes one summary per metric column in column order, followed
// by every derived metric whose inputs exist in the dataset.
func (c *Calculator) Summarize(ctx context.Context, ds Dataset) ([]MetricSummary, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	if c.baseline == nil {
		return nil, errors.New("no baseline provider configured")
	}

	totals := make(map[string]decimal.Decimal, len(ds.Metrics))
	baselines := make(map[string]decimal.Decimal, len(ds.Metrics))
	out := make([]MetricSummary, 0, len(ds.Metrics)+len(c.derived))

	for _, metric := range ds.Metrics {
		col, err := ds.Column(metric)
		if err != nil {
			return nil, err
		}
		total, err := Total(col)
		if err != nil {
			return nil, fmt.Errorf("total %s: %w", metric, err)
		}
		base, err := c.baseline.Baseline(ctx, metric, total)
		if err != nil {
			return nil, fmt.Errorf("baseline %s: %w", metric, err)
		}
		key := strings.ToLower(metric)
		totals[key] = total
		baselines[key] = base
		out = append(out, NewMetricSummary(metric, total, base))
	}

	for _, dm := range c.derived {
		minKey, subKey := strings.ToLower(dm.Minuend), strings.ToLower(dm.Subtrahend)
		minTotal, okMin := totals[minKey]
		subTotal, okSub := totals[subKey]
		if !okMin || !okSub {
			continue
		}
		if ds.MetricIndex(dm.Name) >= 0 {
			// An explicit column with the same name wins.
			continue
		}
		s := NewMetricSummary(dm.Name, minTotal.Sub(subTotal), baselines[minKey].Sub(baselines[subKey]))
		s.Derived = true
		out = append(out, s)
	}
	return out, nil
}
