// Package core provides the expense domain types and the small amount of
// logic shared by the backend and the views.
//
// This file contains amount parsing and formatting. Amounts travel as JSON
// numbers but are parsed and stored as decimals to avoid float rounding in
// user input.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user entered amount to a float.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators.
// Negative values are accepted here; the backend rejects them.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("abc")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	d, err := ParseAmountDecimal(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// ParseAmountDecimal is ParseAmount without the float conversion.
func ParseAmountDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount with two decimals, e.g. 500 -> "500.00".
func FormatAmount(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}
