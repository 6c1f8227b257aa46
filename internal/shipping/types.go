package shipping

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/pricing"
)

// Dimensions describes an item's parcel size.
type Dimensions struct {
	Length decimal.Decimal `json:"length" validate:"gte=0"`
	Width  decimal.Decimal `json:"width" validate:"gte=0"`
	Height decimal.Decimal `json:"height" validate:"gte=0"`
	Units  string          `json:"units,omitempty" validate:"omitempty,oneof=cm in"`
}

// Item is a line to be shipped. Price is optional; a placeholder is used for
// free-shipping checks when it is missing.
type Item struct {
	SKU        string            `json:"sku" validate:"required"`
	Quantity   int               `json:"quantity" validate:"min=1"`
	Price      *decimal.Decimal  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Weight     *decimal.Decimal  `json:"weight,omitempty" validate:"omitempty,gte=0"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Dimensions *Dimensions       `json:"dimensions,omitempty"`
}

// Options tunes a shipping calculation.
type Options struct {
	Methods           []string `json:"methods,omitempty" validate:"omitempty,max=4,dive,oneof=Budget Standard Express Overnight"`
	Currency          string   `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Expedited         bool     `json:"expedited,omitempty"`
	Insurance         bool     `json:"insurance,omitempty"`
	SignatureRequired bool     `json:"signatureRequired,omitempty"`
}

// DaysRange bounds an estimated delivery window.
type DaysRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Quote is one priced delivery offer.
type Quote struct {
	Carrier            string          `json:"carrier"`
	Service            string          `json:"service"`
	Cost               decimal.Decimal `json:"cost"`
	Currency           string          `json:"currency"`
	EstimatedDays      int             `json:"estimatedDays"`
	EstimatedDaysRange *DaysRange      `json:"estimatedDaysRange,omitempty"`
	TrackingAvailable  bool            `json:"trackingAvailable"`
	InsuranceIncluded  bool            `json:"insuranceIncluded"`
	SignatureRequired  bool            `json:"signatureRequired"`
}

// Result is the answer to a shipping calculation. Quotes are sorted by cost
// and Recommended is always one of them.
type Result struct {
	Quotes           []Quote   `json:"quotes"`
	Recommended      Quote     `json:"recommended"`
	Provider         string    `json:"provider"`
	IsEstimated      bool      `json:"isEstimated"`
	Currency         string    `json:"currency"`
	Attempts         int       `json:"attempts"`
	AddressValidated bool      `json:"addressValidated"`
	CalculatedAt     time.Time `json:"calculatedAt"`
}

// Charge converts the recommended quote into the shape pricing consumes.
func (r Result) Charge() *pricing.ShippingCharge {
	q := r.Recommended
	return &pricing.ShippingCharge{
		Cost:          q.Cost,
		Currency:      q.Currency,
		Carrier:       q.Carrier,
		Service:       q.Service,
		EstimatedDays: q.EstimatedDays,
		Estimated:     r.IsEstimated,
	}
}

// ChargeIn converts q into a pricing charge in currency. Quotes without a
// currency are taken to be in it already.
func (q Quote) ChargeIn(ctx context.Context, rates money.RateProvider, currency string, estimated bool) (*pricing.ShippingCharge, error) {
	cost := q.Cost
	if q.Currency != "" && !strings.EqualFold(q.Currency, currency) {
		converted, err := money.Convert(ctx, rates, q.Cost, q.Currency, currency)
		if err != nil {
			return nil, common.NewAppError(common.KindValidation, "UNSUPPORTED_CURRENCY", "unsupported shipping currency", err)
		}
		cost = converted
	}
	return &pricing.ShippingCharge{
		Cost:          cost,
		Currency:      currency,
		Carrier:       q.Carrier,
		Service:       q.Service,
		EstimatedDays: q.EstimatedDays,
		Estimated:     estimated,
	}, nil
}

// OutcomeKind tags how a guaranteed calculation was answered.
type OutcomeKind string

const (
	// OutcomeQuoted means the partner priced the shipment.
	OutcomeQuoted OutcomeKind = "quoted"
	// OutcomeEstimated means the local fallback estimate was used.
	OutcomeEstimated OutcomeKind = "estimated"
)

// Outcome is returned by CalculateGuaranteed. Cause is set for estimates and
// explains why the partner quote was not used.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Result Result      `json:"result"`
	Cause  error       `json:"-"`
}

// Estimated reports whether the outcome is a fallback estimate.
func (o Outcome) Estimated() bool { return o.Kind == OutcomeEstimated }
