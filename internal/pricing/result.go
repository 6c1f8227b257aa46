package pricing

import "github.com/shopspring/decimal"

// Result is a priced order. Total equals
// Subtotal - DiscountAmount + TaxAmount + ShippingAmount.
type Result struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	ShippingAmount decimal.Decimal `json:"shippingAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
	ItemCount      int             `json:"itemCount"`
	Currency       string          `json:"currency"`
	Breakdown      Breakdown       `json:"breakdown"`
}

// Breakdown lists the components that make up a Result.
type Breakdown struct {
	Items     []LineItem     `json:"items"`
	Taxes     []TaxLine      `json:"taxes"`
	Shipping  *ShippingLine  `json:"shipping"`
	Discounts []DiscountLine `json:"discounts"`
}

type LineItem struct {
	ID        string          `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type ShippingLine struct {
	Carrier       string          `json:"carrier,omitempty"`
	Service       string          `json:"service,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	EstimatedDays int             `json:"estimatedDays"`
	Estimated     bool            `json:"estimated"`
}

type DiscountLine struct {
	Name      string          `json:"name"`
	Requested decimal.Decimal `json:"requested"`
	Amount    decimal.Decimal `json:"amount"`
	Capped    bool            `json:"capped"`
}
