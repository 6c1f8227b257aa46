// Package money holds the currency and tax helpers shared by pricing and
// shipping. All amounts are shopspring decimals; rounding happens here so the
// rest of the code never rounds on its own.
package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used whenever a currency code is missing or unknown.
const DefaultCurrency = "USD"

// ErrNegativeAmount is returned by tax helpers for negative inputs.
var ErrNegativeAmount = errors.New("money: amount must not be negative")

// Tolerance is the largest difference two rounded amounts may have and still be
// considered equal.
var Tolerance = decimal.RequireFromString("0.01")

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ApplyTax returns round2(amount * rate).
func ApplyTax(amount, rate decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || rate.IsNegative() {
		return decimal.Zero, ErrNegativeAmount
	}
	return Round2(amount.Mul(rate)), nil
}

// ApproxEqual reports whether a and b differ by no more than Tolerance.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// NormalizeCode upper-cases a currency code and falls back to USD when the
// code is not a known ISO 4217 currency.
func NormalizeCode(code string) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return DefaultCurrency
	}
	return unit.String()
}

// Scale returns the number of minor-unit digits used for the currency
// (2 for USD, 0 for JPY).
func Scale(code string) int32 {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// RoundCurrency rounds amount to the currency's minor units.
func RoundCurrency(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Scale(code))
}

// MinorUnits converts amount into the integer minor units payment providers expect.
func MinorUnits(amount decimal.Decimal, code string) int64 {
	return amount.Shift(Scale(code)).Round(0).IntPart()
}
