package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type (
	// Record is one row of a dataset: a period label and one value per metric
	// column, aligned with Dataset.Metrics.
	Record struct {
		Period string
		Values []decimal.Decimal
	}

	// Dataset is an immutable table of periods and numeric metric columns.
	// It is replaced wholesale, never edited in place.
	Dataset struct {
		Version     string
		Source      string
		PeriodLabel string
		Metrics     []string
		Records     []Record
	}

	// Point is one chartable {x: period, y: value} pair.
	Point struct {
		X string
		Y decimal.Decimal
	}
)

var (
	ErrEmptyDataset    = errors.New("empty dataset")
	ErrNoMetrics       = errors.New("dataset has no metric columns")
	ErrEmptyColumn     = errors.New("empty metric column")
	ErrUnknownMetric   = errors.New("unknown metric")
	ErrDuplicateMetric = errors.New("duplicate metric column")
	ErrRaggedRecord    = errors.New("record width does not match metric columns")
	ErrEmptyPeriod     = errors.New("empty period label")
)

// DefaultPeriodLabel is the header used for the period column when none is given.
const DefaultPeriodLabel = "Period"

// NewDataset validates the table and returns a copy stamped with a fresh version.
func NewDataset(source, periodLabel string, metrics []string, records []Record) (Dataset, error) {
	if strings.TrimSpace(periodLabel) == "" {
		periodLabel = DefaultPeriodLabel
	}
	ds := Dataset{
		Version:     uuid.NewString(),
		Source:      source,
		PeriodLabel: strings.TrimSpace(periodLabel),
		Metrics:     make([]string, len(metrics)),
		Records:     make([]Record, len(records)),
	}
	for i, m := range metrics {
		ds.Metrics[i] = strings.TrimSpace(m)
	}
	for i, r := range records {
		ds.Records[i] = Record{
			Period: strings.TrimSpace(r.Period),
			Values: append([]decimal.Decimal(nil), r.Values...),
		}
	}
	if err := ds.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// Validate checks the structural invariants of the table.
func (d Dataset) Validate() error {
	if len(d.Metrics) == 0 {
		return ErrNoMetrics
	}
	if len(d.Records) == 0 {
		return ErrEmptyDataset
	}
	seen := make(map[string]struct{}, len(d.Metrics))
	for _, m := range d.Metrics {
		if m == "" {
			return fmt.Errorf("metric name: %w", ErrEmptyColumn)
		}
		key := strings.ToLower(m)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMetric, m)
		}
		seen[key] = struct{}{}
	}
	for i, r := range d.Records {
		if r.Period == "" {
			return fmt.Errorf("row %d: %w", i+1, ErrEmptyPeriod)
		}
		if len(r.Values) != len(d.Metrics) {
			return fmt.Errorf("row %d: %w (got %d, want %d)", i+1, ErrRaggedRecord, len(r.Values), len(d.Metrics))
		}
	}
	return nil
}

// IsEmpty reports whether the dataset carries no rows.
func (d Dataset) IsEmpty() bool {
	return len(d.Records) == 0
}

// Len returns the number of rows.
func (d Dataset) Len() int {
	return len(d.Records)
}

// MetricIndex returns the column index for name (case-insensitive) or -1.
func (d Dataset) MetricIndex(name string) int {
	name = strings.TrimSpace(name)
	for i, m := range d.Metrics {
		if strings.EqualFold(m, name) {
			return i
		}
	}
	return -1
}

// Column returns the values of one metric column in row order.
func (d Dataset) Column(metric string) ([]decimal.Decimal, error) {
	idx := d.MetricIndex(metric)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	out := make([]decimal.Decimal, 0, len(d.Records))
	for _, r := range d.Records {
		out = append(out, r.Values[idx])
	}
	return out, nil
}

// Periods returns the period labels in row order.
func (d Dataset) Periods() []string {
	out := make([]string, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Period
	}
	return out
}

// Series returns the chartable points for one metric.
func (d Dataset) Series(metric string) ([]Point, error) {
	col, err := d.Column(metric)
	if err != nil {
		return nil, err
	}
	out := make([]Point, len(col))
	for i, v := range col {
		out[i] = Point{X: d.Records[i].Period, Y: v}
	}
	return out, nil
}

// MonthNames are the period labels of the default synthetic table.
var MonthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}
