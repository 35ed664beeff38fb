// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors; stored as
// NUMERIC(15,2) in PostgreSQL.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use MoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// MoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func MoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ZeroMoney returns zero Money value.
func ZeroMoney() Money {
	return decimal.Zero
}

// RoundMoney rounds to 2 decimal places (half up), the precision persisted
// on sale and refund records.
func RoundMoney(m Money) Money {
	return m.Round(2)
}

// MoneyEqualWithin reports whether a and b differ by at most tolerance.
// Used for the totals re-derivation check on incoming sales.
func MoneyEqualWithin(a, b, tolerance Money) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}
