// Package core provides money parsing and handling utilities.
//
// Amounts are held as integer cents and converted through shopspring/decimal
// at the edges, so no floating-point value is ever involved in arithmetic.
package core

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrAmountOverflow = errors.New("amount out of range")

	// The range is symmetric so Abs never overflows.
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(-math.MaxInt64)
)

// Money is a signed amount with exactly two fractional digits.
type Money struct {
	Cents int64
}

// NewMoney rounds d half away from zero to two places.
func NewMoney(d decimal.Decimal) (Money, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// ParseMoney parses a decimal string. Both dot (12.34) and comma (12,34)
// separators are accepted; extra fractional digits are rounded.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234 cents
//	ParseMoney("-12,34") -> -1234 cents
//	ParseMoney("12.345") -> 1235 cents
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	return NewMoney(d)
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Add returns m+o, or ErrAmountOverflow when the sum leaves the range of
// representable cents.
func (m Money) Add(o Money) (Money, error) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) || sum == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: sum}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if o.Cents == math.MinInt64 {
		return Money{}, ErrAmountOverflow
	}
	return m.Add(Money{Cents: -o.Cents})
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// MarshalJSON renders the amount as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a string holding a number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return ErrInvalidAmount
	}
	v, err := NewMoney(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
