package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount in integer minor units (cents).
// All ledger arithmetic happens on this type; decimals exist only at the
// API boundary, where conversion rounds half-to-even.
type Money int64

var (
	ErrNotPositive = errors.New("amount must be positive")
	ErrNegative    = errors.New("amount cannot be negative")
)

// FromDecimal converts a decimal amount (e.g. "12.345") to cents,
// rounding half-to-even at the cent boundary.
func FromDecimal(d decimal.Decimal) Money {
	return Money(d.Shift(2).RoundBank(0).IntPart())
}

// Parse converts a decimal string to Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the amount as a two-place decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String formats the amount as a decimal string, e.g. "30.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Cents returns the raw minor-unit value.
func (m Money) Cents() int64 {
	return int64(m)
}

// ValidatePositive returns ErrNotPositive unless m > 0.
func (m Money) ValidatePositive() error {
	if m <= 0 {
		return ErrNotPositive
	}
	return nil
}
