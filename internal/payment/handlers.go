package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

// Handler prices a cart and opens a Checkout session for it.
type Handler struct {
	Checkout *StripeCheckout
	Calc     *pricing.Calculator
	Rates    money.RateProvider
}

// Routes mounts the checkout endpoint.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/checkout/session", h.CreateSession)
}

type sessionReq struct {
	Items      []pricing.Item    `json:"items"`
	Shipping   *shipping.Quote   `json:"shipping"`
	Estimated  bool              `json:"shippingEstimated"`
	Discount   decimal.Decimal   `json:"discount"`
	CouponID   string            `json:"couponId"`
	Email      string            `json:"email"`
	SuccessURL string            `json:"successUrl"`
	CancelURL  string            `json:"cancelUrl"`
	Metadata   map[string]string `json:"metadata"`
}

// CreateSession handles POST /api/v1/checkout/session. Totals are always
// recomputed server-side; the client only supplies items and the chosen quote.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Checkout == nil || h.Calc == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req sessionReq
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}

	var charge *pricing.ShippingCharge
	if req.Shipping != nil {
		c, err := req.Shipping.ChargeIn(r.Context(), h.Rates, h.Calc.Config().Currency, req.Estimated)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		charge = c
	}

	res, err := h.Calc.Total(req.Items, charge, req.Discount)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	sess, err := h.Checkout.CreateSession(r.Context(), CheckoutRequest{
		Result:         res,
		Quote:          req.Shipping,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		CouponID:       req.CouponID,
		CustomerEmail:  req.Email,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Metadata:       req.Metadata,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sess, "meta": map[string]any{"pricing": res}})
}
