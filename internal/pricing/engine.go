package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/money"
)

// Item is a cart line submitted for pricing.
type Item struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Name     string          `json:"name,omitempty"`
}

// ShippingCharge is the shipping quote as seen by pricing.
type ShippingCharge struct {
	Cost          decimal.Decimal `json:"cost"`
	Currency      string          `json:"currency"`
	Carrier       string          `json:"carrier,omitempty"`
	Service       string          `json:"service,omitempty"`
	EstimatedDays int             `json:"estimatedDays"`
	Estimated     bool            `json:"estimated"`
}

// Config holds the calculator's policy values.
type Config struct {
	TaxRate               decimal.Decimal
	MaxLineTotal          decimal.Decimal
	MaxShippingCost       decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	Currency              string
	Logger                zerolog.Logger
}

// DefaultConfig returns the storefront defaults.
func DefaultConfig() Config {
	return Config{
		TaxRate:               decimal.RequireFromString("0.08"),
		MaxLineTotal:          decimal.NewFromInt(100000),
		MaxShippingCost:       decimal.NewFromInt(500),
		FreeShippingThreshold: decimal.NewFromInt(100),
		Currency:              money.DefaultCurrency,
		Logger:                zerolog.Nop(),
	}
}

// Calculator computes order totals. It holds no mutable state and is safe for
// concurrent use.
type Calculator struct {
	cfg Config
}

// NewCalculator fills zero limits and currency with defaults. TaxRate is
// taken as given: zero is a tax-exempt deployment, and a negative rate makes
// every Tax call fail. Start from DefaultConfig for the storefront rate.
func NewCalculator(cfg Config) *Calculator {
	def := DefaultConfig()
	if !cfg.MaxLineTotal.IsPositive() {
		cfg.MaxLineTotal = def.MaxLineTotal
	}
	if !cfg.MaxShippingCost.IsPositive() {
		cfg.MaxShippingCost = def.MaxShippingCost
	}
	if !cfg.FreeShippingThreshold.IsPositive() {
		cfg.FreeShippingThreshold = def.FreeShippingThreshold
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	} else {
		cfg.Currency = money.NormalizeCode(cfg.Currency)
	}
	return &Calculator{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config { return c.cfg }

// Subtotal sums price*quantity. The first invalid item aborts the calculation.
func (c *Calculator) Subtotal(items []Item) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, it := range items {
		if err := c.validateItem(i, it); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return money.Round2(sum), nil
}

func (c *Calculator) validateItem(i int, it Item) error {
	if _, err := uuid.Parse(it.ID); err != nil {
		return itemError(i, it, "id", "must be a UUID")
	}
	if it.Price.IsNegative() {
		return itemError(i, it, "price", "must not be negative")
	}
	if it.Quantity < 1 {
		return itemError(i, it, "quantity", "must be a positive integer")
	}
	line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
	if line.GreaterThan(c.cfg.MaxLineTotal) {
		return itemError(i, it, "lineTotal", fmt.Sprintf("exceeds %s", c.cfg.MaxLineTotal.StringFixed(2)))
	}
	return nil
}

// Tax applies the configured rate to subtotal. Shipping is checked but not taxed.
func (c *Calculator) Tax(subtotal, shipping decimal.Decimal) (decimal.Decimal, error) {
	return TaxAtRate(subtotal, shipping, c.cfg.TaxRate)
}

// TaxAtRate returns round2(subtotal*rate).
func TaxAtRate(subtotal, shipping, rate decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.IsNegative() {
		return decimal.Zero, &TaxError{Field: "subtotal", Amount: subtotal}
	}
	if shipping.IsNegative() {
		return decimal.Zero, &TaxError{Field: "shipping", Amount: shipping}
	}
	if rate.IsNegative() {
		return decimal.Zero, &TaxError{Field: "rate", Amount: rate}
	}
	tax, err := money.ApplyTax(subtotal, rate)
	if err != nil {
		return decimal.Zero, &TaxError{Field: "subtotal", Amount: subtotal}
	}
	return tax, nil
}

// ValidateShippingAddress reports which address field is unusable.
func (c *Calculator) ValidateShippingAddress(a address.Address) error {
	return ValidateShippingAddress(a)
}

// ValidateShippingAddress is the package-level form of
// (*Calculator).ValidateShippingAddress.
func ValidateShippingAddress(a address.Address) error {
	if err := address.Validate(a); err != nil {
		return &AddressError{Err: err}
	}
	return nil
}

// Total prices an order. A nil shipping charge means no shipping. The discount
// is capped at the subtotal.
func (c *Calculator) Total(items []Item, shipping *ShippingCharge, discount decimal.Decimal) (Result, error) {
	if discount.IsNegative() {
		return Result{}, &Error{Kind: kindValidation, Index: -1, Field: "discount", Message: "must not be negative"}
	}
	if len(items) == 0 {
		return Result{}, &Error{Kind: kindValidation, Index: -1, Field: "items", Message: "at least one item is required"}
	}
	shippingCost := decimal.Zero
	if shipping != nil {
		if shipping.Cost.IsNegative() {
			return Result{}, &Error{Kind: kindValidation, Index: -1, Field: "shipping", Message: "cost must not be negative"}
		}
		if shipping.Cost.GreaterThan(c.cfg.MaxShippingCost) {
			return Result{}, &Error{Kind: kindValidation, Index: -1, Field: "shipping",
				Message: fmt.Sprintf("cost %s exceeds %s", shipping.Cost.StringFixed(2), c.cfg.MaxShippingCost.StringFixed(2))}
		}
		shippingCost = money.Round2(shipping.Cost)
	}

	subtotal, err := c.Subtotal(items)
	if err != nil {
		return Result{}, err
	}
	tax, err := c.Tax(subtotal, shippingCost)
	if err != nil {
		return Result{}, err
	}
	applied := money.Round2(discount)
	if applied.GreaterThan(subtotal) {
		applied = subtotal
	}
	total := money.Round2(subtotal.Sub(applied).Add(tax).Add(shippingCost))

	res := Result{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ShippingAmount: shippingCost,
		DiscountAmount: applied,
		Total:          total,
		ItemCount:      itemCount(items),
		Currency:       c.cfg.Currency,
		Breakdown:      c.breakdown(items, tax, shipping, shippingCost, discount, applied),
	}
	if err := ValidateResult(res); err != nil {
		return Result{}, err
	}
	c.cfg.Logger.Debug().
		Str("subtotal", subtotal.StringFixed(2)).
		Str("total", total.StringFixed(2)).
		Int("items", res.ItemCount).
		Msg("pricing_total_computed")
	return res, nil
}

func (c *Calculator) breakdown(items []Item, tax decimal.Decimal, shipping *ShippingCharge, shippingCost, requested, applied decimal.Decimal) Breakdown {
	b := Breakdown{
		Items:     make([]LineItem, 0, len(items)),
		Taxes:     []TaxLine{{Name: "Sales tax", Rate: c.cfg.TaxRate, Amount: tax}},
		Discounts: []DiscountLine{},
	}
	for _, it := range items {
		b.Items = append(b.Items, LineItem{
			ID:        it.ID,
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			LineTotal: money.Round2(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))),
		})
	}
	if shipping != nil {
		b.Shipping = &ShippingLine{
			Carrier:       shipping.Carrier,
			Service:       shipping.Service,
			Amount:        shippingCost,
			EstimatedDays: shipping.EstimatedDays,
			Estimated:     shipping.Estimated,
		}
	}
	if applied.IsPositive() {
		b.Discounts = append(b.Discounts, DiscountLine{
			Name:      "Discount",
			Requested: money.Round2(requested),
			Amount:    applied,
			Capped:    applied.LessThan(money.Round2(requested)),
		})
	}
	return b
}

func itemCount(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// QualifiesForFreeShipping compares subtotal with the configured threshold.
func (c *Calculator) QualifiesForFreeShipping(subtotal decimal.Decimal) bool {
	return QualifiesForFreeShipping(subtotal, c.cfg.FreeShippingThreshold)
}

// QualifiesForFreeShipping reports whether subtotal meets threshold.
func QualifiesForFreeShipping(subtotal, threshold decimal.Decimal) bool {
	return subtotal.GreaterThanOrEqual(threshold)
}

// FormatPrice renders amount for display. Unknown currencies format as USD.
func FormatPrice(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = money.DefaultCurrency
	}
	return money.Format(amount, currency)
}

// ValidateResult recomputes the total from the result's own fields.
func ValidateResult(r Result) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", r.Subtotal},
		{"taxAmount", r.TaxAmount},
		{"shippingAmount", r.ShippingAmount},
		{"discountAmount", r.DiscountAmount},
		{"total", r.Total},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return &Error{Kind: kindConsistency, Index: -1, Field: f.name, Message: "must not be negative"}
		}
	}
	if r.DiscountAmount.GreaterThan(r.Subtotal) {
		return &Error{Kind: kindConsistency, Index: -1, Field: "discountAmount", Message: "exceeds subtotal"}
	}
	expected := r.Subtotal.Sub(r.DiscountAmount).Add(r.TaxAmount).Add(r.ShippingAmount)
	if !money.ApproxEqual(expected, r.Total) {
		return &Error{Kind: kindConsistency, Index: -1, Field: "total",
			Message: fmt.Sprintf("expected %s, got %s", expected.StringFixed(2), r.Total.StringFixed(2))}
	}
	return nil
}
