package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Format renders amount for display in American English. Unknown currency
// codes are formatted as USD; Format never fails.
func Format(amount decimal.Decimal, code string) string {
	return FormatLocale(amount, code, language.AmericanEnglish)
}

// FormatLocale renders amount with the currency symbol and digit grouping of
// the given locale.
func FormatLocale(amount decimal.Decimal, code string, tag language.Tag) string {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		unit = currency.USD
	}
	scale, _ := currency.Standard.Rounding(unit)
	p := message.NewPrinter(tag)
	symbol := p.Sprint(currency.Symbol(unit))
	value, _ := amount.Abs().Round(int32(scale)).Float64()
	digits := p.Sprint(number.Decimal(value, number.Scale(scale)))
	if amount.IsNegative() {
		return "-" + symbol + digits
	}
	return symbol + digits
}
