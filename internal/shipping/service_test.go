package shipping_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

type fakeQuoteClient struct {
	mu    sync.Mutex
	calls []fulfillment.QuoteRequest
	fn    func(call int, req fulfillment.QuoteRequest) (fulfillment.ShippingCost, error)
}

func (f *fakeQuoteClient) CalculateShippingCost(ctx context.Context, req fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()
	return f.fn(n, req)
}

func (f *fakeQuoteClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var (
	usAddress = address.Address{CountryCode: "US", StateOrCounty: "CA", PostalCode: "94105", City: "San Francisco"}
	fixedNow  = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
)

func newService(client fulfillment.QuoteClient) *shipping.Service {
	return shipping.NewService(shipping.Config{
		Client:    client,
		BaseDelay: time.Millisecond,
		Timeout:   time.Second,
		Now:       func() time.Time { return fixedNow },
	})
}

func failingClient() *fakeQuoteClient {
	return &fakeQuoteClient{fn: func(int, fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		return fulfillment.ShippingCost{}, errors.New("connection reset")
	}}
}

func TestCalculateReturnsSortedPartnerQuotes(t *testing.T) {
	client := &fakeQuoteClient{fn: func(_ int, req fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		switch req.Method {
		case "Express":
			return fulfillment.ShippingCost{Cost: dec("24.00"), Currency: "USD", EstimatedDays: 2, ServiceName: "Express", TrackingAvailable: true}, nil
		default:
			return fulfillment.ShippingCost{Cost: dec("8.50"), Currency: "USD", EstimatedDays: 7, ServiceName: "Standard", Carrier: "USPS", TrackingAvailable: true}, nil
		}
	}}
	svc := newService(client)

	items := []shipping.Item{{SKU: "GLOBAL-CAN-16X20", Quantity: 10, Price: decPtr("50")}}
	res, err := svc.Calculate(context.Background(), items, usAddress, shipping.Options{Methods: []string{"express", "standard"}})
	require.NoError(t, err)
	require.False(t, res.IsEstimated)
	require.Equal(t, "prodigi", res.Provider)
	require.Len(t, res.Quotes, 2)
	require.Equal(t, "Standard", res.Quotes[0].Service)
	require.Equal(t, "USPS", res.Quotes[0].Carrier)
	require.Equal(t, "Express", res.Quotes[1].Service)
	require.Equal(t, "Standard", res.Recommended.Service)
	require.Equal(t, 2, res.Attempts)
	require.Equal(t, fixedNow, res.CalculatedAt)
	// no automatic free shipping on real quotes
	require.Equal(t, "8.5", res.Recommended.Cost.String())
}

func TestCalculateValidationSkipsPartner(t *testing.T) {
	client := failingClient()
	svc := newService(client)
	ctx := context.Background()

	cases := map[string]struct {
		items []shipping.Item
		addr  address.Address
		opts  shipping.Options
	}{
		"no items":       {nil, usAddress, shipping.Options{}},
		"missing sku":    {[]shipping.Item{{Quantity: 1}}, usAddress, shipping.Options{}},
		"zero quantity":  {[]shipping.Item{{SKU: "A", Quantity: 0}}, usAddress, shipping.Options{}},
		"negative price": {[]shipping.Item{{SKU: "A", Quantity: 1, Price: decPtr("-1")}}, usAddress, shipping.Options{}},
		"us no postcode": {[]shipping.Item{{SKU: "A", Quantity: 1}}, address.Address{CountryCode: "US", StateOrCounty: "CA"}, shipping.Options{}},
		"unknown method": {[]shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{Methods: []string{"Teleport"}}},
		"bad currency":   {[]shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{Currency: "DOLLARS"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Calculate(ctx, tc.items, tc.addr, tc.opts)
			var verr *shipping.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, common.KindValidation, common.KindOf(err))
		})
	}
	require.Zero(t, client.Calls())
}

func TestValidationErrorNamesNestedField(t *testing.T) {
	svc := newService(failingClient())
	bad := shipping.Item{SKU: "A", Quantity: 1, Dimensions: &shipping.Dimensions{Length: dec("-2")}}

	_, err := svc.Calculate(context.Background(), []shipping.Item{{SKU: "B", Quantity: 1}, bad}, usAddress, shipping.Options{})
	var verr *shipping.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "items[1].Dimensions.Length", verr.Field)

	_, err = svc.Calculate(context.Background(), []shipping.Item{{Quantity: 1}}, usAddress, shipping.Options{})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "items[0].SKU", verr.Field)
}

func TestCalculateRetriesWithBackoff(t *testing.T) {
	client := &fakeQuoteClient{fn: func(call int, _ fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		if call < 3 {
			return fulfillment.ShippingCost{}, &fulfillment.APIError{Status: 503, Body: "busy"}
		}
		return fulfillment.ShippingCost{Cost: dec("9.99"), Currency: "USD", EstimatedDays: 5, ServiceName: "Standard"}, nil
	}}
	svc := newService(client)

	res, err := svc.Calculate(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{})
	require.NoError(t, err)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, client.Calls())
}

func TestCalculateExhaustsRetries(t *testing.T) {
	client := failingClient()
	svc := newService(client)

	_, err := svc.Calculate(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{})
	var serr *shipping.ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 3, serr.Attempts)
	require.Equal(t, common.KindProviderFailure, common.KindOf(err))
	require.Contains(t, err.Error(), "connection reset")
}

func TestCalculateDoesNotRetryPartnerRejection(t *testing.T) {
	client := &fakeQuoteClient{fn: func(int, fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		return fulfillment.ShippingCost{}, &fulfillment.APIError{Status: 400, Body: "unknown sku"}
	}}
	svc := newService(client)

	_, err := svc.Calculate(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{})
	var serr *shipping.ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 1, serr.Attempts)
}

func TestCalculateTimesOut(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	client := &fakeQuoteClient{fn: func(int, fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		<-release
		return fulfillment.ShippingCost{Cost: dec("1")}, nil
	}}
	svc := shipping.NewService(shipping.Config{
		Client:      client,
		MaxAttempts: 1,
		Timeout:     10 * time.Millisecond,
	})

	_, err := svc.Calculate(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{})
	var terr *shipping.TimeoutError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, 10*time.Millisecond, terr.Timeout)
}

func TestCalculateStopsRetryingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeQuoteClient{fn: func(int, fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		cancel()
		return fulfillment.ShippingCost{}, errors.New("boom")
	}}
	svc := shipping.NewService(shipping.Config{Client: client, BaseDelay: time.Hour})

	_, err := svc.Calculate(ctx, []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, client.Calls())
}

func TestGuaranteedFallsBackOnPartnerFailure(t *testing.T) {
	svc := newService(failingClient())

	items := []shipping.Item{{SKU: "GLOBAL-CAN-16X20", Quantity: 1, Price: decPtr("20")}}
	out := svc.CalculateGuaranteed(context.Background(), items, usAddress, shipping.Options{}, true)
	require.Equal(t, shipping.OutcomeEstimated, out.Kind)
	require.True(t, out.Estimated())
	require.Error(t, out.Cause)

	res := out.Result
	require.True(t, res.IsEstimated)
	require.Equal(t, shipping.FallbackProvider, res.Provider)
	require.Equal(t, 3, res.Attempts)
	require.Len(t, res.Quotes, 2)
	require.Equal(t, "9.99", res.Quotes[0].Cost.StringFixed(2))
	require.Equal(t, "17.48", res.Quotes[1].Cost.StringFixed(2))
	require.Equal(t, "Standard", res.Recommended.Service)
	for _, q := range res.Quotes {
		require.NotNil(t, q.EstimatedDaysRange)
		require.GreaterOrEqual(t, q.EstimatedDaysRange.Min, 4)
		require.Equal(t, q.EstimatedDaysRange.Max, q.EstimatedDays)
		require.Equal(t, "USD", q.Currency)
	}
}

func TestGuaranteedReturnsQuotedOutcome(t *testing.T) {
	client := &fakeQuoteClient{fn: func(int, fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		return fulfillment.ShippingCost{Cost: dec("7.00"), Currency: "USD", EstimatedDays: 6, ServiceName: "Standard"}, nil
	}}
	svc := newService(client)

	out := svc.CalculateGuaranteed(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{}, false)
	require.Equal(t, shipping.OutcomeQuoted, out.Kind)
	require.NoError(t, out.Cause)
	require.True(t, out.Result.AddressValidated)
	require.False(t, out.Result.IsEstimated)
}

func TestGuaranteedAppliesFreeShippingToEstimates(t *testing.T) {
	svc := newService(failingClient())

	items := []shipping.Item{{SKU: "A", Quantity: 1, Price: decPtr("150")}}
	out := svc.CalculateGuaranteed(context.Background(), items, usAddress, shipping.Options{}, true)
	for _, q := range out.Result.Quotes {
		require.True(t, q.Cost.IsZero())
		require.Contains(t, []string{"Free Standard", "Free Express"}, q.Service)
	}
	require.Equal(t, "FREE", shipping.FormatShippingCost(out.Result.Recommended))

	// four unpriced items at the 25.00 placeholder reach the threshold
	unpriced := []shipping.Item{{SKU: "A", Quantity: 4}}
	out = svc.CalculateGuaranteed(context.Background(), unpriced, usAddress, shipping.Options{}, true)
	require.True(t, out.Result.Recommended.Cost.IsZero())
}

func TestGuaranteedSurcharges(t *testing.T) {
	svc := newService(failingClient())

	items := []shipping.Item{{SKU: "GLOBAL-CAN-24X36", Quantity: 2, Price: decPtr("10")}}
	out := svc.CalculateGuaranteed(context.Background(), items, usAddress, shipping.Options{Expedited: true, Insurance: true}, true)
	res := out.Result
	// 9.99 + 2.50 extra unit + 2*7.50 large + 2.99 insurance
	require.Equal(t, "30.48", res.Quotes[0].Cost.StringFixed(2))
	require.Equal(t, "53.34", res.Quotes[1].Cost.StringFixed(2))
	require.Equal(t, "Express", res.Recommended.Service)
	require.True(t, res.Recommended.InsuranceIncluded)
}

func TestGuaranteedConvertsToLocalCurrency(t *testing.T) {
	svc := newService(failingClient())

	gb := address.Address{CountryCode: "GB", City: "London"}
	out := svc.CalculateGuaranteed(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1, Price: decPtr("10")}}, gb, shipping.Options{}, true)
	require.Equal(t, "GBP", out.Result.Currency)
	// 9.99 * 1.2 = 11.99 USD -> GBP at 0.79
	require.Equal(t, "9.47", out.Result.Recommended.Cost.StringFixed(2))
}

func TestGuaranteedSkipsPartnerForUnvalidatedInvalidAddress(t *testing.T) {
	client := failingClient()
	svc := newService(client)

	bad := address.Address{CountryCode: "US", StateOrCounty: "CA"}
	out := svc.CalculateGuaranteed(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, bad, shipping.Options{}, false)
	require.Equal(t, shipping.OutcomeEstimated, out.Kind)
	require.False(t, out.Result.AddressValidated)
	var verr *shipping.ValidationError
	require.ErrorAs(t, out.Cause, &verr)
	require.Zero(t, client.Calls())
}

func TestGuaranteedSurvivesPanickingClient(t *testing.T) {
	client := &fakeQuoteClient{fn: func(int, fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
		panic("partner sdk bug")
	}}
	svc := shipping.NewService(shipping.Config{Client: client, MaxAttempts: 1})

	out := svc.CalculateGuaranteed(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{}, true)
	require.Equal(t, shipping.OutcomeEstimated, out.Kind)
	require.Contains(t, out.Cause.Error(), "panicked")
	require.Equal(t, 1, client.Calls())

	out = svc.CalculateGuaranteed(context.Background(), nil, address.Address{}, shipping.Options{}, true)
	require.Equal(t, shipping.OutcomeEstimated, out.Kind)
	require.Len(t, out.Result.Quotes, 2)
	require.Equal(t, "USD", out.Result.Currency)
}

func TestEstimateFeedsPricing(t *testing.T) {
	svc := newService(failingClient())
	calc := pricing.NewCalculator(pricing.DefaultConfig())

	out := svc.CalculateGuaranteed(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1, Price: decPtr("20")}}, usAddress, shipping.Options{}, true)
	res, err := calc.Total([]pricing.Item{{ID: uuid.NewString(), SKU: "A", Price: dec("20"), Quantity: 1}}, out.Result.Charge(), decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, "9.99", res.ShippingAmount.StringFixed(2))
	require.True(t, res.Breakdown.Shipping.Estimated)
	require.NoError(t, pricing.ValidateResult(res))
}
