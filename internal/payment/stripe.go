// Package payment hands a priced order over to Stripe Checkout.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/obs"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

const providerName = "stripe"

// SessionAPI creates Checkout sessions. *session.Client satisfies it.
type SessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures StripeCheckout.
type StripeConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Sessions SessionAPI
	Logger   zerolog.Logger
}

// StripeCheckout creates Checkout sessions from validated pricing results.
type StripeCheckout struct {
	sessions SessionAPI
	logger   zerolog.Logger
}

// NewStripeCheckout constructs a StripeCheckout. Sessions overrides the real
// Stripe client, mainly for tests.
func NewStripeCheckout(cfg StripeConfig) (*StripeCheckout, error) {
	sessions := cfg.Sessions
	if sessions == nil {
		key := strings.TrimSpace(cfg.APIKey)
		if key == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(key, cfg.Backends).CheckoutSessions
	}
	return &StripeCheckout{sessions: sessions, logger: cfg.Logger}, nil
}

// CheckoutRequest describes the session to open.
type CheckoutRequest struct {
	Result         pricing.Result
	Quote          *shipping.Quote
	SuccessURL     string
	CancelURL      string
	CouponID       string
	CustomerEmail  string
	IdempotencyKey string
	Metadata       map[string]string
}

// Session is the subset of the Stripe session callers need.
type Session struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	AmountTotal int64  `json:"amountTotal"`
	Currency    string `json:"currency"`
}

// CreateSession re-validates the pricing result and opens a Checkout session
// charging its items, tax and shipping. A discount requires a coupon.
func (s *StripeCheckout) CreateSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	ctx, span := otel.Tracer("payment.Stripe").Start(ctx, "StripeCheckout.CreateSession")
	defer span.End()

	start := time.Now()
	result := "error"
	defer func() {
		span.SetAttributes(
			attribute.String("payment.provider", providerName),
			attribute.String("payment.session.result", result),
			attribute.Float64("payment.session.duration_ms", obs.DurationMillis(time.Since(start))),
		)
		obs.Inc(obs.CheckoutSessionTotal, providerName, result)
	}()

	params, err := BuildSessionParams(req)
	if err != nil {
		result = "invalid"
		return Session{}, err
	}
	params.Context = ctx

	sess, err := s.sessions.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("total", req.Result.Total.String()).Msg("stripe_session_failed")
		return Session{}, common.NewAppError(common.KindProviderFailure, "PAYMENT_PROVIDER_ERROR", "could not create checkout session", fmt.Errorf("stripe: create checkout session: %w", err))
	}
	result = "created"
	s.logger.Info().Str("session_id", sess.ID).Int64("amount_total", sess.AmountTotal).Msg("stripe_session_created")
	return Session{ID: sess.ID, URL: sess.URL, AmountTotal: sess.AmountTotal, Currency: string(sess.Currency)}, nil
}

// BuildSessionParams maps a pricing result onto Stripe session parameters.
func BuildSessionParams(req CheckoutRequest) (*stripe.CheckoutSessionParams, error) {
	res := req.Result
	if err := pricing.ValidateResult(res); err != nil {
		return nil, err
	}
	if len(res.Breakdown.Items) == 0 {
		return nil, invalid("result has no line items")
	}
	if strings.TrimSpace(req.SuccessURL) == "" || strings.TrimSpace(req.CancelURL) == "" {
		return nil, invalid("successUrl and cancelUrl are required")
	}
	if res.DiscountAmount.IsPositive() && strings.TrimSpace(req.CouponID) == "" {
		return nil, invalid("a discounted order needs a coupon")
	}

	currency := money.NormalizeCode(res.Currency)
	lower := strings.ToLower(currency)

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	for _, item := range res.Breakdown.Items {
		name := item.Name
		if name == "" {
			name = item.SKU
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(lower),
				UnitAmount: stripe.Int64(money.MinorUnits(item.UnitPrice, currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(name),
					Metadata: map[string]string{"sku": item.SKU, "itemId": item.ID},
				},
			},
		})
	}
	if res.TaxAmount.IsPositive() {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(lower),
				UnitAmount: stripe.Int64(money.MinorUnits(res.TaxAmount, currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Tax"),
				},
			},
		})
	}

	if opt := shippingOption(res, req.Quote, currency); opt != nil {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{opt}
	}
	if res.DiscountAmount.IsPositive() {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(req.CouponID)}}
	}

	params.Metadata = map[string]string{
		"subtotal": res.Subtotal.StringFixed(2),
		"tax":      res.TaxAmount.StringFixed(2),
		"shipping": res.ShippingAmount.StringFixed(2),
		"discount": res.DiscountAmount.StringFixed(2),
		"total":    res.Total.StringFixed(2),
		"currency": currency,
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: params.Metadata}
	return params, nil
}

func shippingOption(res pricing.Result, quote *shipping.Quote, currency string) *stripe.CheckoutSessionShippingOptionParams {
	line := res.Breakdown.Shipping
	if line == nil && quote == nil {
		return nil
	}
	name := "Shipping"
	days := 0
	var rng *shipping.DaysRange
	if line != nil {
		name = strings.TrimSpace(line.Service)
		days = line.EstimatedDays
	}
	if quote != nil {
		if quote.Service != "" {
			name = quote.Service
		}
		days = quote.EstimatedDays
		rng = quote.EstimatedDaysRange
	}
	if name == "" {
		name = "Shipping"
	}
	opt := &stripe.CheckoutSessionShippingOptionParams{
		ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
			Type:        stripe.String("fixed_amount"),
			DisplayName: stripe.String(name),
			FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
				Amount:   stripe.Int64(money.MinorUnits(res.ShippingAmount, currency)),
				Currency: stripe.String(strings.ToLower(currency)),
			},
		},
	}
	minDays, maxDays := days, days
	if rng != nil {
		minDays, maxDays = rng.Min, rng.Max
	}
	if minDays > 0 && maxDays >= minDays {
		opt.ShippingRateData.DeliveryEstimate = &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateParams{
			Minimum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMinimumParams{
				Unit:  stripe.String("business_day"),
				Value: stripe.Int64(int64(minDays)),
			},
			Maximum: &stripe.CheckoutSessionShippingOptionShippingRateDataDeliveryEstimateMaximumParams{
				Unit:  stripe.String("business_day"),
				Value: stripe.Int64(int64(maxDays)),
			},
		}
	}
	return opt
}

func invalid(msg string) error {
	return common.NewAppError(common.KindValidation, "INVALID_CHECKOUT", msg, nil)
}

// MinorTotal is the amount Stripe is expected to charge for res, in minor units.
func MinorTotal(res pricing.Result) int64 {
	return money.MinorUnits(res.Total, money.NormalizeCode(res.Currency))
}
