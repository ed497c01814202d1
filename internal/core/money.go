// Package core provides the dataset model and the metrics calculator.
//
// This file contains parsing of numeric cells coming from uploaded tables.
package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a cell cannot be read as a number.
var ErrInvalidAmount = errors.New("invalid amount")

// maxExponent bounds scientific notation so a cell cannot expand into an
// arbitrarily large number.
const maxExponent = 28

// ParseAmount converts a table cell to an exact decimal.
//
// It tolerates a leading currency symbol, surrounding whitespace, thousands
// separators and a decimal comma. A single sign may precede or follow the
// currency symbol, and an exponent of at most 28 is accepted.
//
// Examples:
//
//	ParseAmount("1234.5")    -> 1234.5
//	ParseAmount("$1,234.50") -> 1234.5
//	ParseAmount("12,34")     -> 12.34
//	ParseAmount("1,234")     -> 1234
//	ParseAmount("$-5")       -> -5
//	ParseAmount("1.5e3")     -> 1500
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	neg, signed := cutSign(&s)
	s = strings.TrimSpace(strings.TrimLeft(s, "$€£"))
	if !signed {
		neg, _ = cutSign(&s)
	}
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, " ", "")

	mantissa, exp := s, ""
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mantissa, exp = s[:i], s[i+1:]
		if !validExponent(exp) {
			return decimal.Zero, ErrInvalidAmount
		}
	}

	commas := strings.Count(mantissa, ",")
	switch {
	case commas > 0 && strings.Contains(mantissa, "."):
		mantissa = strings.ReplaceAll(mantissa, ",", "")
	case commas == 1 && len(mantissa)-strings.Index(mantissa, ",")-1 <= 2:
		// 12,34 reads as a decimal comma; 1,234 as a thousands separator.
		mantissa = strings.Replace(mantissa, ",", ".", 1)
	case commas > 0:
		mantissa = strings.ReplaceAll(mantissa, ",", "")
	}

	digits := 0
	for _, r := range mantissa {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r != '.':
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if digits == 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	if exp != "" {
		mantissa += "e" + exp
	}
	d, err := decimal.NewFromString(mantissa)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// cutSign strips one leading '+' or '-' from *s.
func cutSign(s *string) (neg, ok bool) {
	if *s == "" {
		return false, false
	}
	switch (*s)[0] {
	case '-':
		neg = true
	case '+':
	default:
		return false, false
	}
	*s = strings.TrimSpace((*s)[1:])
	return neg, true
}

func validExponent(exp string) bool {
	digits := strings.TrimLeft(exp, "+-")
	if len(exp)-len(digits) > 1 || digits == "" || len(digits) > 2 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	n := int(digits[0] - '0')
	if len(digits) == 2 {
		n = n*10 + int(digits[1]-'0')
	}
	return n <= maxExponent
}
