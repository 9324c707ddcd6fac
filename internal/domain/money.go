package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a rupee amount stored as BIGINT paise (10^-2)
// to avoid floating point errors.
type Money struct {
	Paise int64
}

// FromPaise creates a Money instance from paise.
func FromPaise(p int64) Money {
	return Money{Paise: p}
}

// FromDecimal converts a decimal rupee amount to Money, rounding
// half-up to 2 fraction digits.
func FromDecimal(d decimal.Decimal) Money {
	return Money{Paise: d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()}
}

// Decimal converts the paise amount to a shopspring/decimal rupee value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Paise).Div(decimal.NewFromInt(100))
}

// Add returns the sum of two amounts.
func (m Money) Add(other Money) Money {
	return Money{Paise: m.Paise + other.Paise}
}

// Sub returns the difference of two amounts.
func (m Money) Sub(other Money) Money {
	return Money{Paise: m.Paise - other.Paise}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Paise > 0
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Paise < 0
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Paise == 0
}

// String returns the rupee representation, e.g. "₹1000.00".
func (m Money) String() string {
	return fmt.Sprintf("₹%s", m.Decimal().StringFixed(2))
}
