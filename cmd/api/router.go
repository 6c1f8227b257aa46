package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-printshop/internal/app"
	"github.com/noah-isme/backend-printshop/internal/catalog"
	"github.com/noah-isme/backend-printshop/internal/health"
	"github.com/noah-isme/backend-printshop/internal/obs"
	"github.com/noah-isme/backend-printshop/internal/order"
	"github.com/noah-isme/backend-printshop/internal/payment"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/ratelimit"
	"github.com/noah-isme/backend-printshop/internal/shipping"
	"github.com/noah-isme/backend-printshop/internal/sku"
)

const maxBodyBytes = 1 << 20

type routerOptions struct {
	Limiter     *limiter.Limiter
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
}

func newRouter(svc *app.Services, opts routerOptions) http.Handler {
	cfg := svc.Config
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: svc.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestSize(maxBodyBytes))

	if opts.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	health.Handler{Checks: svc.HealthChecks()}.Routes(r)

	orderHandler := &order.Handler{Calc: svc.Calc, Rates: svc.Rates, Submitter: svc.Orders}
	if svc.Snapshots != nil {
		orderHandler.Snapshots = svc.Snapshots
	}

	r.Group(func(api chi.Router) {
		api.Use(ratelimit.Handler{Limiter: opts.Limiter, Logger: svc.Logger}.Middleware)
		api.Use(svc.Idempotency().Middleware)
		pricing.NewHandler(svc.Calc).Routes(api)
		(&shipping.Handler{Svc: svc.Shipping}).Routes(api)
		(&sku.Handler{Resolver: svc.Resolver}).Routes(api)
		catalog.NewHandler(catalog.HandlerConfig{Service: svc.Catalog}).Routes(api)
		(&payment.Handler{Checkout: svc.Checkout, Calc: svc.Calc, Rates: svc.Rates}).Routes(api)
		orderHandler.Routes(api)
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
