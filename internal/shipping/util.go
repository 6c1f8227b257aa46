package shipping

import (
	"strings"
	"time"

	"github.com/noah-isme/backend-printshop/internal/money"
)

var supportedCountries = map[string]struct{}{
	"US": {}, "CA": {}, "GB": {}, "IE": {}, "AU": {}, "NZ": {},
	"DE": {}, "FR": {}, "ES": {}, "IT": {}, "NL": {}, "BE": {},
	"AT": {}, "CH": {}, "SE": {}, "NO": {}, "DK": {}, "FI": {},
	"PT": {}, "PL": {}, "JP": {}, "SG": {}, "HK": {},
}

// IsShippingAvailable reports whether the storefront ships to countryCode.
func IsShippingAvailable(countryCode string) bool {
	_, ok := supportedCountries[strings.ToUpper(strings.TrimSpace(countryCode))]
	return ok
}

// EstimatedDeliveryDate adds the quote's days to from and moves weekend
// results to the following Monday.
func EstimatedDeliveryDate(q Quote, from time.Time) time.Time {
	days := q.EstimatedDays
	if days < 0 {
		days = 0
	}
	d := from.AddDate(0, 0, days)
	switch d.Weekday() {
	case time.Saturday:
		d = d.AddDate(0, 0, 2)
	case time.Sunday:
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// FormatShippingCost renders the quote cost, or FREE when it costs nothing.
func FormatShippingCost(q Quote) string {
	if q.Cost.IsZero() {
		return "FREE"
	}
	return money.Format(q.Cost, q.Currency)
}
