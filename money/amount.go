/*
Package money provides the fixed-point Amount used for every balance.

PURPOSE:
  Monetary values carry exactly four fractional digits. They are stored as
  an int64 count of ten-thousandths so arithmetic is exact and bounded.

CHECKED ARITHMETIC:
  CheckedAdd and CheckedSub never wrap and never panic. A result above
  MaxAmount fails with ErrOverflow, a result below MinAmount fails with
  ErrUnderflow. Callers decide what a failed operation means for them.

PARSING:
  Parse goes through decimal.Decimal so any textual form decimal accepts is
  accepted, as long as it has at most four fractional digits and fits in
  the int64 range. "1.5" and "1.5000" are fine, "1.50000" is not.

SEE ALSO:
  - ledger/engine.go: the only writer of balances
  - csvio/reader.go: surfaces ParseError per input row
*/
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Digits is the number of fractional digits every Amount carries.
const Digits = 4

// Scale is 10^Digits: the number of units in 1.0000.
const Scale = 10_000

var (
	// ErrOverflow is returned when a result exceeds MaxAmount.
	ErrOverflow = errors.New("amount overflow")

	// ErrUnderflow is returned when a result falls below MinAmount.
	ErrUnderflow = errors.New("amount underflow")

	// ErrPrecision is returned by Parse for more than Digits fractional digits.
	ErrPrecision = errors.New("too many fractional digits")

	// ErrOutOfRange is returned by Parse for values that do not fit an Amount.
	ErrOutOfRange = errors.New("amount out of range")

	// ErrSyntax is returned by Parse for non-numeric input.
	ErrSyntax = errors.New("invalid amount syntax")
)

var (
	maxDecimal = decimal.New(math.MaxInt64, -Digits)
	minDecimal = decimal.New(math.MinInt64, -Digits)
)

// Amount is a signed fixed-point value with four fractional digits.
// The zero value is 0.0000.
type Amount struct {
	units int64
}

var (
	Zero      = Amount{}
	MaxAmount = Amount{units: math.MaxInt64}
	MinAmount = Amount{units: math.MinInt64}
)

// FromUnits builds an Amount from a count of ten-thousandths.
func FromUnits(units int64) Amount { return Amount{units: units} }

// FromInt builds a whole Amount. It fails when n*Scale does not fit.
func FromInt(n int64) (Amount, error) {
	if n > math.MaxInt64/Scale {
		return Zero, ErrOverflow
	}
	if n < math.MinInt64/Scale {
		return Zero, ErrUnderflow
	}
	return Amount{units: n * Scale}, nil
}

func (a Amount) Units() int64 { return a.units }

// CheckedAdd returns a+b or ErrOverflow/ErrUnderflow.
func CheckedAdd(a, b Amount) (Amount, error) {
	if b.units > 0 && a.units > math.MaxInt64-b.units {
		return Zero, ErrOverflow
	}
	if b.units < 0 && a.units < math.MinInt64-b.units {
		return Zero, ErrUnderflow
	}
	return Amount{units: a.units + b.units}, nil
}

// CheckedSub returns a-b or ErrOverflow/ErrUnderflow.
func CheckedSub(a, b Amount) (Amount, error) {
	if b.units < 0 && a.units > math.MaxInt64+b.units {
		return Zero, ErrOverflow
	}
	if b.units > 0 && a.units < math.MinInt64+b.units {
		return Zero, ErrUnderflow
	}
	return Amount{units: a.units - b.units}, nil
}

// CheckedAdd is the method form of the package-level CheckedAdd.
func (a Amount) CheckedAdd(b Amount) (Amount, error) { return CheckedAdd(a, b) }

// CheckedSub is the method form of the package-level CheckedSub.
func (a Amount) CheckedSub(b Amount) (Amount, error) { return CheckedSub(a, b) }

func (a Amount) Cmp(b Amount) int {
	switch {
	case a.units < b.units:
		return -1
	case a.units > b.units:
		return 1
	}
	return 0
}

func (a Amount) Equal(b Amount) bool       { return a.units == b.units }
func (a Amount) LessThan(b Amount) bool    { return a.units < b.units }
func (a Amount) GreaterThan(b Amount) bool { return a.units > b.units }
func (a Amount) IsNegative() bool          { return a.units < 0 }
func (a Amount) IsZero() bool              { return a.units == 0 }

// Decimal converts to decimal.Decimal for display or storage.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(a.units, -Digits) }

// String renders the amount with exactly four fractional digits.
func (a Amount) String() string { return a.Decimal().StringFixed(Digits) }

// =============================================================================
// PARSING
// =============================================================================

// ParseError reports why a textual amount was rejected.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse amount %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads a decimal string into an Amount. It never rounds.
func Parse(s string) (Amount, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return Zero, &ParseError{Input: s, Err: ErrSyntax}
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return Zero, &ParseError{Input: s, Err: fmt.Errorf("%w: %v", ErrSyntax, err)}
	}
	if d.Exponent() < -Digits {
		return Zero, &ParseError{Input: s, Err: ErrPrecision}
	}
	if d.GreaterThan(maxDecimal) || d.LessThan(minDecimal) {
		return Zero, &ParseError{Input: s, Err: ErrOutOfRange}
	}
	return Amount{units: d.Shift(Digits).IntPart()}, nil
}

// MustParse is Parse for constants and tests. It panics on bad input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}
