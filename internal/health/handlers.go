// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-printshop/internal/common"
)

var draining atomic.Bool

// SetReady toggles readiness. The API flips it off when shutdown starts so
// load balancers stop routing before connections drain.
func SetReady(ready bool) { draining.Store(!ready) }

// Check probes one dependency. A failing optional check marks the service
// degraded but still ready: shipping falls back to estimates and the catalog
// to its fixed options when the partner or cache is down.
type Check struct {
	Name     string
	Ping     func(ctx context.Context) error
	Optional bool
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks  []Check
	Timeout time.Duration
}

// Routes mounts the probe endpoints.
func (h Handler) Routes(r chi.Router) {
	r.Get("/health/live", h.Live)
	r.Get("/health/ready", h.Ready)
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]any{"status": "draining"})
		return
	}
	status := "ok"
	checks := make(map[string]string, len(h.Checks))
	for _, c := range h.Checks {
		err := h.ping(r.Context(), c)
		if err == nil {
			checks[c.Name] = "ok"
			continue
		}
		checks[c.Name] = err.Error()
		switch {
		case !c.Optional:
			status = "unavailable"
		case status == "ok":
			status = "degraded"
		}
	}
	code := http.StatusOK
	if status == "unavailable" {
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (h Handler) ping(ctx context.Context, c Check) error {
	if c.Ping == nil {
		return errors.New("not configured")
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx)
}
