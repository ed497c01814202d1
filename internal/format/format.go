// Package format renders KPI values for people: grouped currency amounts
// and signed percentages with a trend arrow.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kpidash/internal/core"
)

// Undefined is shown in place of a percent change with a zero baseline.
const Undefined = "n/a"

var printer = message.NewPrinter(language.English)

// Number groups thousands and keeps exactly two decimals unless the value
// is whole: 300000 -> "300,000", 1234.5 -> "1,234.50".
func Number(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	grouped := intPart
	if n, err := strconv.ParseInt(intPart, 10, 64); err == nil {
		grouped = printer.Sprintf("%d", n)
	}
	out := grouped
	if frac != "00" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Currency prefixes Number with a dollar sign, sign first: "-$1,200".
func Currency(d decimal.Decimal) string {
	n := Number(d)
	if strings.HasPrefix(n, "-") {
		return "-$" + n[1:]
	}
	return "$" + n
}

// Arrow returns the trend glyph for a direction.
func Arrow(dir core.Direction) string {
	if dir == core.DirectionUp {
		return "▲"
	}
	return "▼"
}

// Percent renders a change with two decimals, or Undefined.
func Percent(s core.MetricSummary) string {
	if !s.ChangeDefined {
		return Undefined
	}
	return s.PercentChange.StringFixed(2) + "%"
}

// Change combines Arrow and Percent: "▲ 20.00%".
func Change(s core.MetricSummary) string {
	if !s.ChangeDefined {
		return Undefined
	}
	return Arrow(s.Direction) + " " + Percent(s)
}
