package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/backend-printshop/internal/app"
	"github.com/noah-isme/backend-printshop/internal/config"
	"github.com/noah-isme/backend-printshop/internal/health"
	"github.com/noah-isme/backend-printshop/internal/obs"
	"github.com/noah-isme/backend-printshop/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing := cfg.TracingExporter != "none"
	if tracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName: "printshop-api",
			Endpoint:    cfg.OTLPEndpoint,
			Exporter:    cfg.TracingExporter,
			Environment: cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracing = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.DBAutoMigrate {
		if err := app.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	svc, err := app.Build(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("build services")
	}
	defer svc.Close()

	store, err := ratelimit.NewStore(svc.Redis, "printshop:")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	lim, err := ratelimit.New(cfg.RateLimit, store)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	handler := newRouter(svc, routerOptions{
		Limiter:     lim,
		HTTPMetrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBuckets), nil),
		Tracing:     tracing,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()
	health.SetReady(true)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("server draining")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}
	logger.Info().Msg("server stopped")
}
