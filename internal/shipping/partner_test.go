package shipping_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/prodigi"
	"github.com/noah-isme/backend-printshop/internal/resilience"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

func TestPartnerRequestsBoundedByServiceAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	partner, err := prodigi.New(prodigi.Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		HTTP:    resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond, Timeout: time.Second},
	})
	require.NoError(t, err)

	svc := shipping.NewService(shipping.Config{
		Client:      partner.SingleAttempt(),
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Timeout:     time.Second,
		Methods:     []string{"Standard"},
	})
	_, err = svc.Calculate(context.Background(), []shipping.Item{{SKU: "GLOBAL-CAN-16X20", Quantity: 1}}, usAddress, shipping.Options{})

	var serr *shipping.ServiceError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, 3, serr.Attempts)
	require.Equal(t, int32(3), hits.Load())
}

type ctxQuoteClient func(ctx context.Context)

func (f ctxQuoteClient) CalculateShippingCost(ctx context.Context, _ fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
	f(ctx)
	return fulfillment.ShippingCost{}, ctx.Err()
}

func TestAttemptContextCancelledOnTimeout(t *testing.T) {
	cancelled := make(chan struct{})
	svc := shipping.NewService(shipping.Config{
		Client: ctxQuoteClient(func(ctx context.Context) {
			<-ctx.Done()
			close(cancelled)
		}),
		MaxAttempts: 1,
		Timeout:     10 * time.Millisecond,
		Methods:     []string{"Standard"},
	})
	_, err := svc.Calculate(context.Background(), []shipping.Item{{SKU: "A", Quantity: 1}}, usAddress, shipping.Options{})
	var terr *shipping.TimeoutError
	require.ErrorAs(t, err, &terr)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("partner call still running after its attempt timed out")
	}
}
