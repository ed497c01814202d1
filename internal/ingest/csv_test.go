package ingest

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
)

func TestParseCSV(t *testing.T) {
	in := "Month,Sales,Expenses\nJanuary,\"30,000\",20000\nFebruary,45000.50,18000\n\n"
	ds, err := ParseCSV(strings.NewReader(in), "upload.csv")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if ds.PeriodLabel != "Month" || ds.Source != "upload.csv" {
		t.Fatalf("unexpected dataset header: %+v", ds)
	}
	if ds.Len() != 2 || len(ds.Metrics) != 2 {
		t.Fatalf("expected 2x2 table, got %d rows %d metrics", ds.Len(), len(ds.Metrics))
	}
	sales, _ := ds.Column("Sales")
	total, _ := core.Total(sales)
	if !total.Equal(decimal.RequireFromString("75000.5")) {
		t.Fatalf("unexpected sales total %s", total)
	}
}

func TestParseCSVErrors(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		want   error
		row    int
		column string
	}{
		{"empty", "", ErrNoHeader, 0, ""},
		{"header only", "Month,Sales\n", ErrNoRows, 0, ""},
		{"no metrics", "Month\nJan\n", core.ErrNoMetrics, 0, ""},
		{"non numeric", "Month,Sales\nJan,10\nFeb,lots\n", ErrNonNumeric, 3, "Sales"},
		{"missing value", "Month,Sales,Expenses\nJan,10\n", ErrMissingValue, 2, "Expenses"},
		{"missing period", "Month,Sales\n,10\n", ErrMissingValue, 2, "Month"},
		{"duplicate metric", "Month,Sales,sales\nJan,1,2\n", core.ErrDuplicateMetric, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tc.in), "t")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.row == 0 {
				return
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if pe.Row != tc.row || pe.Column != tc.column {
				t.Fatalf("expected row %d column %q, got row %d column %q", tc.row, tc.column, pe.Row, pe.Column)
			}
		})
	}
}

func TestParseCSVStripsBOMAndTrailingHeader(t *testing.T) {
	in := "\ufeffMonth,Sales,\nJan,5,\n"
	ds, err := ParseCSV(strings.NewReader(in), "t")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if ds.PeriodLabel != "Month" || len(ds.Metrics) != 1 {
		t.Fatalf("unexpected header: %q %v", ds.PeriodLabel, ds.Metrics)
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds := Synthetic(rand.New(rand.NewPCG(1, 1)))
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	back, err := ParseCSV(&buf, "again")
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	a, _ := ds.Column("Expenses")
	b, _ := back.Column("Expenses")
	ta, _ := core.Total(a)
	tb, _ := core.Total(b)
	if !ta.Equal(tb) {
		t.Fatalf("totals differ after round trip: %s vs %s", ta, tb)
	}
}

func TestSynthetic(t *testing.T) {
	ds := Synthetic(rand.New(rand.NewPCG(3, 4)))
	if ds.Len() != 12 {
		t.Fatalf("expected 12 months, got %d", ds.Len())
	}
	if ds.Records[0].Period != "January" || ds.Records[11].Period != "December" {
		t.Fatalf("unexpected periods: %v", ds.Periods())
	}
	check := func(metric string, lo, hi int64) {
		col, err := ds.Column(metric)
		if err != nil {
			t.Fatalf("Column(%s): %v", metric, err)
		}
		for i, v := range col {
			if v.LessThan(decimal.NewFromInt(lo)) || !v.LessThan(decimal.NewFromInt(hi)) {
				t.Fatalf("%s[%d]=%s outside [%d, %d)", metric, i, v, lo, hi)
			}
		}
	}
	check("Sales", SalesMin, SalesMax)
	check("Expenses", ExpensesMin, ExpensesMax)
}

func TestParseRowsSkipsBlankRows(t *testing.T) {
	rows := [][]string{
		{"Quarter", "Revenue"},
		{"", ""},
		{"Q1", "100"},
		{"Q2"},
	}
	_, err := ParseRows(rows, "sheet")
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Row != 4 || !errors.Is(err, ErrMissingValue) {
		t.Fatalf("expected missing value on row 4, got %v", err)
	}

	ds, err := ParseRows(rows[:3], "sheet")
	if err != nil {
		t.Fatalf("ParseRows: %v", err)
	}
	if ds.Len() != 1 || ds.PeriodLabel != "Quarter" {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
}
