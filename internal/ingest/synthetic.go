package ingest

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"kpidash/internal/core"
)

// Ranges of the synthetic table, upper bound exclusive.
const (
	SalesMin    = 20000
	SalesMax    = 50000
	ExpensesMin = 15000
	ExpensesMax = 30000
)

// SyntheticSource is the Source recorded on generated datasets.
const SyntheticSource = "synthetic"

// Synthetic builds the default twelve-month Sales/Expenses table.
func Synthetic(rng *rand.Rand) core.Dataset {
	records := make([]core.Record, len(core.MonthNames))
	for i, month := range core.MonthNames {
		records[i] = core.Record{
			Period: month,
			Values: []decimal.Decimal{
				decimal.NewFromInt(SalesMin + rng.Int64N(SalesMax-SalesMin)),
				decimal.NewFromInt(ExpensesMin + rng.Int64N(ExpensesMax-ExpensesMin)),
			},
		}
	}
	ds, err := core.NewDataset(SyntheticSource, "Month", []string{"Sales", "Expenses"}, records)
	if err != nil {
		// The generated table is always well formed.
		panic(err)
	}
	return ds
}
