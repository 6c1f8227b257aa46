package shipping

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/money"
)

// FallbackProvider is the provider name reported on local estimates.
const FallbackProvider = "intelligent_fallback"

var (
	fallbackBaseRate        = decimal.RequireFromString("9.99")
	fallbackPerExtraUnit    = decimal.RequireFromString("2.50")
	fallbackPerLargeUnit    = decimal.RequireFromString("7.50")
	fallbackInsurance       = decimal.RequireFromString("2.99")
	fallbackExpressFactor   = decimal.RequireFromString("1.75")
	fallbackDefaultMultiple = decimal.RequireFromString("1.8")
)

var countryMultipliers = map[string]decimal.Decimal{
	"US": decimal.RequireFromString("1.0"),
	"CA": decimal.RequireFromString("1.3"),
	"GB": decimal.RequireFromString("1.2"),
	"AU": decimal.RequireFromString("1.6"),
	"NZ": decimal.RequireFromString("1.6"),
	"JP": decimal.RequireFromString("1.5"),
	"SG": decimal.RequireFromString("1.5"),
	"HK": decimal.RequireFromString("1.5"),
}

var europe = map[string]struct{}{
	"IE": {}, "DE": {}, "FR": {}, "ES": {}, "IT": {}, "NL": {}, "BE": {}, "AT": {},
	"CH": {}, "SE": {}, "NO": {}, "DK": {}, "FI": {}, "PT": {}, "PL": {}, "LU": {}, "GR": {},
}

var europeMultiplier = decimal.RequireFromString("1.25")

// largeSizeTokens mark SKUs of oversized prints.
var largeSizeTokens = []string{"24X36", "30X40", "36X48", "40X60", "LARGE", "-XL"}

type daysWindow struct {
	standard DaysRange
	express  DaysRange
}

func deliveryWindow(country string) daysWindow {
	switch {
	case country == "US":
		return daysWindow{standard: DaysRange{Min: 5, Max: 8}, express: DaysRange{Min: 4, Max: 5}}
	case country == "CA" || country == "GB":
		return daysWindow{standard: DaysRange{Min: 7, Max: 12}, express: DaysRange{Min: 4, Max: 6}}
	case isEurope(country):
		return daysWindow{standard: DaysRange{Min: 7, Max: 14}, express: DaysRange{Min: 4, Max: 7}}
	default:
		return daysWindow{standard: DaysRange{Min: 10, Max: 21}, express: DaysRange{Min: 5, Max: 10}}
	}
}

func isEurope(country string) bool {
	_, ok := europe[country]
	return ok
}

func countryMultiplier(country string) decimal.Decimal {
	if m, ok := countryMultipliers[country]; ok {
		return m
	}
	if isEurope(country) {
		return europeMultiplier
	}
	return fallbackDefaultMultiple
}

func isLargeSKU(sku string) bool {
	upper := strings.ToUpper(sku)
	for _, token := range largeSizeTokens {
		if strings.Contains(upper, token) {
			return true
		}
	}
	return false
}

// Fallback builds a local estimate with a standard and an express quote. It
// tolerates any input, including empty or invalid items.
func (s *Service) Fallback(ctx context.Context, items []Item, addr address.Address, opts Options) Result {
	country := strings.ToUpper(strings.TrimSpace(addr.CountryCode))

	units, largeUnits := 0, 0
	subtotal := decimal.Zero
	for _, it := range items {
		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		units += qty
		if isLargeSKU(it.SKU) {
			largeUnits += qty
		}
		price := s.cfg.PlaceholderPrice
		if it.Price != nil && !it.Price.IsNegative() {
			price = *it.Price
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}

	cost := fallbackBaseRate.Mul(countryMultiplier(country))
	if units > 1 {
		cost = cost.Add(fallbackPerExtraUnit.Mul(decimal.NewFromInt(int64(units - 1))))
	}
	cost = cost.Add(fallbackPerLargeUnit.Mul(decimal.NewFromInt(int64(largeUnits))))
	if opts.Insurance {
		cost = cost.Add(fallbackInsurance)
	}
	standardUSD := money.Round2(cost)
	expressUSD := money.Round2(cost.Mul(fallbackExpressFactor))

	free := subtotal.GreaterThanOrEqual(s.cfg.FreeShippingThreshold)
	currency := s.currencyFor(addr, opts)
	window := deliveryWindow(country)

	build := func(service string, usd decimal.Decimal, days DaysRange) Quote {
		q := Quote{
			Carrier:            "Estimated",
			Service:            service,
			Currency:           currency,
			EstimatedDays:      days.Max,
			EstimatedDaysRange: &DaysRange{Min: days.Min, Max: days.Max},
			TrackingAvailable:  true,
			InsuranceIncluded:  opts.Insurance,
			SignatureRequired:  opts.SignatureRequired,
		}
		if free {
			q.Service = "Free " + service
			q.Cost = decimal.Zero
			return q
		}
		converted, err := money.Convert(ctx, s.cfg.Rates, usd, money.DefaultCurrency, currency)
		if err != nil {
			q.Currency = money.DefaultCurrency
			q.Cost = usd
			return q
		}
		q.Cost = converted
		return q
	}

	standard := build("Standard", standardUSD, window.standard)
	express := build("Express", expressUSD, window.express)
	quotes := []Quote{standard, express}
	sortQuotes(quotes)

	recommended := standard
	if opts.Expedited {
		recommended = express
	}
	return Result{
		Quotes:       quotes,
		Recommended:  recommended,
		Provider:     FallbackProvider,
		IsEstimated:  true,
		Currency:     recommended.Currency,
		CalculatedAt: s.cfg.Now(),
	}
}
