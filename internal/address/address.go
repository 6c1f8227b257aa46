// Package address converts the assorted address payloads sent by storefront
// clients into one canonical shape and validates it.
package address

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var countryPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Address is the canonical shipping address used by pricing and shipping.
type Address struct {
	Name          string `json:"name,omitempty"`
	Line1         string `json:"line1,omitempty"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city,omitempty"`
	StateOrCounty string `json:"stateOrCounty,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	CountryCode   string `json:"countryCode"`
}

// FieldError names the address field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("address %s: %s", e.Field, e.Reason)
}

// Validate checks the country code and, for US addresses, the postal code.
// Country plus city is enough everywhere else.
func Validate(a Address) error {
	if a.CountryCode == "" {
		return &FieldError{Field: "countryCode", Reason: "is required"}
	}
	if !countryPattern.MatchString(a.CountryCode) {
		return &FieldError{Field: "countryCode", Reason: "must be a two-letter uppercase ISO code"}
	}
	if a.CountryCode == "US" && strings.TrimSpace(a.PostalCode) == "" {
		return &FieldError{Field: "postalCode", Reason: "is required for US addresses"}
	}
	return nil
}

// Raw accepts every historical field name clients have used for addresses.
// Use Normalize to obtain an Address.
type Raw map[string]any

var aliases = map[string][]string{
	"countryCode":   {"countryCode", "country_code", "country"},
	"stateOrCounty": {"stateOrCounty", "state_or_county", "state", "county", "region"},
	"postalCode":    {"postalCode", "postal_code", "zip", "zipCode", "postcode"},
	"city":          {"city", "town"},
	"line1":         {"line1", "address1", "addressLine1", "address_line1"},
	"line2":         {"line2", "address2", "addressLine2", "address_line2"},
	"name":          {"name", "recipient", "fullName", "full_name"},
}

func (r Raw) first(field string) string {
	for _, key := range aliases[field] {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case json.Number:
			s = val.String()
		case float64:
			s = fmt.Sprintf("%.0f", val)
		default:
			s = fmt.Sprint(val)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Normalize maps a loose payload onto Address. Country codes are upper-cased
// and whitespace is trimmed; nothing is validated.
func Normalize(r Raw) Address {
	return Address{
		Name:          r.first("name"),
		Line1:         r.first("line1"),
		Line2:         r.first("line2"),
		City:          r.first("city"),
		StateOrCounty: r.first("stateOrCounty"),
		PostalCode:    r.first("postalCode"),
		CountryCode:   strings.ToUpper(r.first("countryCode")),
	}
}

// UnmarshalJSON lets Address fields in request bodies accept legacy shapes.
func (a *Address) UnmarshalJSON(data []byte) error {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Normalize(raw)
	return nil
}
