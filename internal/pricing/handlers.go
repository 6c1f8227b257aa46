package pricing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/common"
)

// Handler exposes the calculator over HTTP.
type Handler struct {
	calc *Calculator
}

// NewHandler constructs a Handler.
func NewHandler(calc *Calculator) *Handler {
	return &Handler{calc: calc}
}

// Routes mounts the pricing endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/pricing/total", h.Total)
}

type totalRequest struct {
	Items    []Item           `json:"items"`
	Shipping *ShippingCharge  `json:"shipping"`
	Discount decimal.Decimal  `json:"discount"`
	Address  *address.Address `json:"address"`
}

// Total handles POST /api/v1/pricing/total.
func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	if h.calc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing calculator not configured", nil)
		return
	}
	var req totalRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Address != nil {
		if err := h.calc.ValidateShippingAddress(*req.Address); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	res, err := h.calc.Total(req.Items, req.Shipping, req.Discount)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": res,
		"meta": map[string]any{
			"formattedTotal":        FormatPrice(res.Total, res.Currency),
			"qualifiesFreeShipping": h.calc.QualifiesForFreeShipping(res.Subtotal),
		},
	})
}
