package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/repo"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

// Handler exposes order pricing snapshots and fulfillment submission.
type Handler struct {
	Calc      *pricing.Calculator
	Rates     money.RateProvider
	Snapshots SnapshotStore
	Submitter *Submitter
}

// Routes mounts the order endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/v1/orders/{orderID}", func(o chi.Router) {
		o.Put("/pricing", h.SavePricing)
		o.Get("/pricing", h.GetPricing)
		o.Post("/fulfillment", h.Submit)
	})
}

type pricingReq struct {
	Items     []pricing.Item  `json:"items"`
	Shipping  *shipping.Quote `json:"shipping"`
	Estimated bool            `json:"shippingEstimated"`
	Discount  decimal.Decimal `json:"discount"`
}

// SavePricing handles PUT /api/v1/orders/{orderID}/pricing. The totals are
// computed here and only stored when they validate.
func (h *Handler) SavePricing(w http.ResponseWriter, r *http.Request) {
	if h.Calc == nil || h.Snapshots == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "SNAPSHOTS_UNAVAILABLE", "pricing snapshots not configured", nil)
		return
	}
	var req pricingReq
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
	if err := h.Snapshots.Save(r.Context(), chi.URLParam(r, "orderID"), res, req.Shipping, req.Estimated); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// GetPricing handles GET /api/v1/orders/{orderID}/pricing.
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	if h.Snapshots == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "SNAPSHOTS_UNAVAILABLE", "pricing snapshots not configured", nil)
		return
	}
	snap, err := h.Snapshots.Get(r.Context(), chi.URLParam(r, "orderID"))
	switch {
	case errors.Is(err, repo.ErrInvalidID):
		common.JSONError(w, http.StatusBadRequest, "INVALID_ORDER_ID", "order id must be a UUID", nil)
		return
	case errors.Is(err, repo.ErrSnapshotNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "pricing snapshot not found", nil)
		return
	case err != nil:
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}

// Submit handles POST /api/v1/orders/{orderID}/fulfillment.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Submitter == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "FULFILLMENT_UNAVAILABLE", "fulfillment not configured", nil)
		return
	}
	var req SubmitRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	req.OrderID = chi.URLParam(r, "orderID")
	sub, err := h.Submitter.Submit(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusAccepted, map[string]any{"data": sub})
}
