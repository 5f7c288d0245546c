// Package money converts between decimal amounts and integer minor units.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

const minorDigits = 2

var (
	ErrNegative   = errors.New("amount_negative")
	ErrTooPrecise = errors.New("amount_too_precise")
	ErrOutOfRange = errors.New("amount_out_of_range")
)

var (
	hundred       = decimal.NewFromInt(100)
	maxMinorUnits = decimal.NewFromInt(1 << 53)
)

// ToCents converts an amount with at most two decimal places into cents.
func ToCents(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, ErrNegative
	}
	if !amount.Equal(amount.Truncate(minorDigits)) {
		return 0, ErrTooPrecise
	}
	cents := amount.Shift(minorDigits)
	if cents.GreaterThan(maxMinorUnits) {
		return 0, ErrOutOfRange
	}
	return cents.IntPart(), nil
}

func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -minorDigits)
}

// PercentOf returns pct% of cents, rounded half up to a whole cent.
func PercentOf(cents int64, pct decimal.Decimal) int64 {
	if cents <= 0 || !pct.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(cents).Mul(pct).Div(hundred).Round(0).IntPart()
}

// Format renders cents as a fixed two-decimal string.
func Format(cents int64) string {
	return FromCents(cents).StringFixed(minorDigits)
}

// Decimals reports the number of fractional digits in d.
func Decimals(d decimal.Decimal) int32 {
	for n := -d.Exponent(); n > 0; n-- {
		if !d.Equal(d.Truncate(n - 1)) {
			return n
		}
	}
	return 0
}
