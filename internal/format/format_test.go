package format

import (
	"testing"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
)

func TestNumber(t *testing.T) {
	cases := map[string]string{
		"300000":    "300,000",
		"1234.5":    "1,234.50",
		"0":         "0",
		"-15000":    "-15,000",
		"999.999":   "1,000",
		"12.345":    "12.35",
		"123456789": "123,456,789",
	}
	for in, want := range cases {
		if got := Number(decimal.RequireFromString(in)); got != want {
			t.Errorf("Number(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestCurrency(t *testing.T) {
	if got := Currency(decimal.NewFromInt(300000)); got != "$300,000" {
		t.Errorf("got %q", got)
	}
	if got := Currency(decimal.NewFromInt(-1200)); got != "-$1,200" {
		t.Errorf("got %q", got)
	}
}

func TestChange(t *testing.T) {
	up := core.NewMetricSummary("Sales", decimal.NewFromInt(300000), decimal.NewFromInt(250000))
	if got := Change(up); got != "▲ 20.00%" {
		t.Errorf("got %q", got)
	}
	flat := core.NewMetricSummary("Sales", decimal.NewFromInt(100000), decimal.NewFromInt(100000))
	if got := Change(flat); got != "▼ 0.00%" {
		t.Errorf("got %q", got)
	}
	down := core.NewMetricSummary("Sales", decimal.NewFromInt(250000), decimal.NewFromInt(300000))
	if got := Change(down); got != "▼ -16.67%" {
		t.Errorf("got %q", got)
	}
	undefined := core.NewMetricSummary("Sales", decimal.NewFromInt(1), decimal.Zero)
	if got := Change(undefined); got != Undefined || Percent(undefined) != Undefined {
		t.Errorf("got %q", got)
	}
}
