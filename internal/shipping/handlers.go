package shipping

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/common"
)

// Handler exposes shipping quotes over HTTP.
type Handler struct {
	Svc *Service
}

// Routes mounts the shipping endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/shipping/quote", h.Quote)
	r.Post("/api/v1/shipping/quote/guaranteed", h.Guaranteed)
	r.Get("/api/v1/shipping/availability/{country}", h.Availability)
}

type quoteRequest struct {
	Items            []Item          `json:"items"`
	Address          address.Address `json:"address"`
	Options          Options         `json:"options"`
	AddressValidated bool            `json:"addressValidated"`
}

// Quote handles POST /api/v1/shipping/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	res, err := h.Svc.Calculate(r.Context(), req.Items, req.Address, req.Options)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// Guaranteed handles POST /api/v1/shipping/quote/guaranteed. It always
// answers 200 unless the payload cannot be decoded.
func (h *Handler) Guaranteed(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	out := h.Svc.CalculateGuaranteed(r.Context(), req.Items, req.Address, req.Options, req.AddressValidated)
	meta := map[string]any{
		"kind":          out.Kind,
		"formattedCost": FormatShippingCost(out.Result.Recommended),
		"deliveryBy":    EstimatedDeliveryDate(out.Result.Recommended, out.Result.CalculatedAt).Format(time.DateOnly),
	}
	if out.Cause != nil {
		meta["cause"] = string(common.KindOf(out.Cause))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out.Result, "meta": meta})
}

// Availability handles GET /api/v1/shipping/availability/{country}.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	country := strings.ToUpper(chi.URLParam(r, "country"))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"countryCode": country,
			"available":   IsShippingAvailable(country),
		},
	})
}
