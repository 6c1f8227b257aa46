package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-printshop/internal/common"
)

// Handler exposes frame catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/v1/catalog/frames", h.Frames)
	r.Get("/api/v1/catalog/frames/combinations", h.Combinations)
	r.Delete("/api/v1/catalog/cache", h.ClearCache)
}

// Frames handles GET /api/v1/catalog/frames. An optional size query narrows
// the result to one bucket.
func (h *Handler) Frames(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	opts := h.service.FrameOptions(r.Context())
	if size := r.URL.Query().Get("size"); size != "" {
		if _, ok := sizeOrder[size]; !ok {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown size", map[string]any{"size": size})
			return
		}
		filtered := opts[:0:0]
		for _, o := range opts {
			if o.Size == size {
				filtered = append(filtered, o)
			}
		}
		opts = filtered
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": opts, "meta": map[string]any{"count": len(opts)}})
}

// Combinations handles GET /api/v1/catalog/frames/combinations.
func (h *Handler) Combinations(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.FrameCombinations(r.Context())})
}

// ClearCache handles DELETE /api/v1/catalog/cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	if err := h.service.ClearCache(r.Context()); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
