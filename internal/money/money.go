// Package money represents currency amounts as integer counts of the smallest
// currency unit ("cents").
//
// All arithmetic on Cents is integer arithmetic. Decimal values only appear at
// the edges: parsing user input (Parse, FromDecimal) and rendering
// for display (String, Format). Rounding from decimal input is half away from
// zero at the hundredths place.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned for input that is not a finite decimal
	// number or does not fit in an int64 count of cents.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrOverflow is returned when adding amounts leaves the int64 range.
	ErrOverflow = errors.New("amount overflow")
)

// Cents is a signed amount in the smallest currency unit.
type Cents int64

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// FromDecimal converts a decimal amount in major units (e.g. 12.345) to cents,
// rounding half away from zero: 12.345 -> 1235, -12.345 -> -1235.
func FromDecimal(d decimal.Decimal) (Cents, error) {
	cents := d.Shift(2).Round(0)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, ErrInvalidAmount
	}
	return Cents(cents.IntPart()), nil
}

// Parse converts user-facing decimal input to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. Digits beyond the hundredths place are rounded half away
// from zero.
//
// Examples:
//
//	Parse("12.34")  -> 1234
//	Parse("12,345") -> 1235
//	Parse("-0.005") -> -1
func Parse(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return FromDecimal(d)
}

// Decimal returns the amount in major units as an exact decimal.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String renders the amount in major units with exactly two fractional
// digits, e.g. "12.34" or "-0.05". Parse(c.String()) == c for every c.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the absolute value. Abs of math.MinInt64 is not representable
// and is returned unchanged.
func (c Cents) Abs() Cents {
	if c < 0 && c != math.MinInt64 {
		return -c
	}
	return c
}

// Add returns a+b, or ErrOverflow if the result does not fit in Cents.
func Add(a, b Cents) (Cents, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sum adds amounts exactly, failing with ErrOverflow as soon as a running
// total leaves the int64 range.
func Sum(amounts ...Cents) (Cents, error) {
	var total Cents
	for _, a := range amounts {
		var err error
		if total, err = Add(total, a); err != nil {
			return 0, err
		}
	}
	return total, nil
}
