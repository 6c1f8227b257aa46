package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-printshop/internal/app"
	"github.com/noah-isme/backend-printshop/internal/config"
	"github.com/noah-isme/backend-printshop/internal/lock"
	"github.com/noah-isme/backend-printshop/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build services")
	}
	defer svc.Close()
	if svc.Partner == nil {
		logger.Warn().Msg("prodigi not configured; catalog refresh will only report fallbacks")
	}

	logger.Info().Dur("interval", cfg.CatalogRefreshInterval).Msg("worker starting")
	refreshLoop(ctx, svc.Catalog, cfg.CatalogRefreshInterval, logger)
	logger.Info().Msg("worker shutdown complete")
}

type refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// refreshLoop warms the catalog cache immediately and then on every tick
// until ctx is cancelled. Another instance holding the refresh lock is not
// an error.
func refreshLoop(ctx context.Context, r refresher, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		refreshOnce(ctx, r, interval, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func refreshOnce(ctx context.Context, r refresher, budget time.Duration, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	start := time.Now()
	n, err := r.Refresh(runCtx)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		logger.Debug().Msg("catalog_refresh_skipped")
	case errors.Is(err, context.Canceled):
	case err != nil:
		logger.Error().Err(err).Msg("catalog_refresh_failed")
	default:
		logger.Info().Int("options", n).Dur("took", time.Since(start)).Msg("catalog_refreshed")
	}
}
