package money

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is wrapped when a rate provider has no rate for a code.
var ErrUnknownCurrency = fmt.Errorf("money: unknown currency")

// RateProvider resolves the multiplier that converts one unit of from into to.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// FixedRates is a static table of units per one USD. The values are
// approximate and meant for estimates only.
type FixedRates map[string]decimal.Decimal

// DefaultRates returns the built-in conversion table.
func DefaultRates() FixedRates {
	return FixedRates{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.92"),
		"GBP": decimal.RequireFromString("0.79"),
		"CAD": decimal.RequireFromString("1.36"),
		"AUD": decimal.RequireFromString("1.52"),
		"NZD": decimal.RequireFromString("1.64"),
		"JPY": decimal.RequireFromString("149.50"),
		"CHF": decimal.RequireFromString("0.88"),
		"SEK": decimal.RequireFromString("10.45"),
		"NOK": decimal.RequireFromString("10.60"),
		"DKK": decimal.RequireFromString("6.87"),
		"PLN": decimal.RequireFromString("3.98"),
		"SGD": decimal.RequireFromString("1.34"),
		"HKD": decimal.RequireFromString("7.82"),
		"MXN": decimal.RequireFromString("17.10"),
	}
}

// Rate implements RateProvider.
func (r FixedRates) Rate(_ context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	fromRate, ok := r[from]
	if !ok || fromRate.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := r[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}
	return toRate.Div(fromRate), nil
}

// Convert converts amount between currencies and rounds to the target
// currency's minor units.
func Convert(ctx context.Context, rates RateProvider, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if rates == nil {
		rates = DefaultRates()
	}
	rate, err := rates.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundCurrency(amount.Mul(rate), to), nil
}

var countryCurrency = map[string]string{
	"US": "USD", "CA": "CAD", "GB": "GBP", "AU": "AUD", "NZ": "NZD",
	"JP": "JPY", "CH": "CHF", "SE": "SEK", "NO": "NOK", "DK": "DKK",
	"PL": "PLN", "SG": "SGD", "HK": "HKD", "MX": "MXN",
	"DE": "EUR", "FR": "EUR", "ES": "EUR", "IT": "EUR", "NL": "EUR",
	"BE": "EUR", "AT": "EUR", "IE": "EUR", "PT": "EUR", "FI": "EUR",
	"LU": "EUR", "GR": "EUR",
}

// CurrencyForCountry returns the local currency of an ISO 3166 alpha-2 country,
// defaulting to USD.
func CurrencyForCountry(countryCode string) string {
	if code, ok := countryCurrency[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
		return code
	}
	return DefaultCurrency
}
