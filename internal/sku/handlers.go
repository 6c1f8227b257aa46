package sku

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-printshop/internal/common"
)

// Handler exposes SKU resolution over HTTP.
type Handler struct {
	Resolver *Resolver
}

// Routes mounts the SKU endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/v1/sku", h.Lookup)
	r.Get("/api/v1/sku/state", h.State)
	r.Delete("/api/v1/sku/state", h.Reset)
	r.Get("/api/v1/sku/{sku}/alternatives", h.Alternatives)
	r.Post("/api/v1/sku/{sku}/resolve", h.Resolve)
}

// Lookup handles GET /api/v1/sku?size=&style=&material=.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, style, material := q.Get("size"), q.Get("style"), q.Get("material")
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"sku":      h.Resolver.ProductSKU(size, style, material),
			"size":     size,
			"style":    style,
			"material": material,
		},
	})
}

// Alternatives handles GET /api/v1/sku/{sku}/alternatives.
func (h *Handler) Alternatives(w http.ResponseWriter, r *http.Request) {
	failed := chi.URLParam(r, "sku")
	alts := h.Resolver.FindAlternatives(r.Context(), failed)
	common.JSON(w, http.StatusOK, map[string]any{"data": alts, "meta": map[string]any{"count": len(alts)}})
}

// Resolve handles POST /api/v1/sku/{sku}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	requested := chi.URLParam(r, "sku")
	resolved, err := h.Resolver.Resolve(r.Context(), requested)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"requested":   normalize(requested),
			"sku":         resolved,
			"substituted": resolved != normalize(requested),
		},
	})
}

// State handles GET /api/v1/sku/state.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Resolver.Snapshot()})
}

// Reset handles DELETE /api/v1/sku/state.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.Resolver.Reset()
	w.WriteHeader(http.StatusNoContent)
}
