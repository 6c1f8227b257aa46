// Package app builds the service graph shared by the API and the worker.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-printshop/internal/catalog"
	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/config"
	"github.com/noah-isme/backend-printshop/internal/health"
	"github.com/noah-isme/backend-printshop/internal/lock"
	"github.com/noah-isme/backend-printshop/internal/money"
	"github.com/noah-isme/backend-printshop/internal/obs"
	"github.com/noah-isme/backend-printshop/internal/order"
	"github.com/noah-isme/backend-printshop/internal/payment"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/prodigi"
	"github.com/noah-isme/backend-printshop/internal/repo"
	"github.com/noah-isme/backend-printshop/internal/resilience"
	"github.com/noah-isme/backend-printshop/internal/shipping"
	"github.com/noah-isme/backend-printshop/internal/sku"
)

const keyPrefix = "printshop:"

// Services holds every long-lived dependency. Optional backends are nil when
// not configured: no DATABASE_URL disables snapshots, no REDIS_URL keeps the
// catalog cache in process, no PRODIGI_API_KEY serves estimates and fallback
// options only, no STRIPE_SECRET_KEY disables checkout.
type Services struct {
	Config *config.Config
	Logger zerolog.Logger

	DB      *pgxpool.Pool
	Redis   *redis.Client
	Partner *prodigi.Client
	Breaker *resilience.Breaker

	Rates     money.RateProvider
	Calc      *pricing.Calculator
	Shipping  *shipping.Service
	Resolver  *sku.Resolver
	Catalog   *catalog.Service
	Checkout  *payment.StripeCheckout
	Snapshots *repo.Snapshots
	Orders    *order.Submitter

	closers []func()
}

// Build connects the configured backends and constructs the services.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Services, error) {
	s := &Services{Config: cfg, Logger: logger, Rates: money.DefaultRates()}
	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.wire(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Services) connect(ctx context.Context) error {
	cfg := s.Config
	if cfg.DatabaseURL != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("parse database config: %w", err)
		}
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolConfig.ConnConfig.RuntimeParams["application_name"] = "printshop-api"
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		s.DB = pool
		s.closers = append(s.closers, pool.Close)
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := redisotel.InstrumentTracing(client); err != nil {
			s.Logger.Error().Err(err).Msg("instrument redis tracing")
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			s.Logger.Error().Err(err).Msg("instrument redis metrics")
		}
		s.Redis = client
		s.closers = append(s.closers, func() {
			if err := client.Close(); err != nil {
				s.Logger.Error().Err(err).Msg("close redis")
			}
		})
	}
	return nil
}

func (s *Services) wire() error {
	cfg := s.Config
	logger := s.Logger

	s.Calc = pricing.NewCalculator(pricing.Config{
		TaxRate:               cfg.TaxRate,
		MaxLineTotal:          cfg.MaxLineTotal,
		MaxShippingCost:       cfg.MaxShippingCost,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		Currency:              cfg.Currency,
		Logger:                logger.With().Str("component", "pricing").Logger(),
	})

	rules := sku.DefaultRules()
	if cfg.SKURulesPath != "" {
		f, err := os.Open(cfg.SKURulesPath)
		if err != nil {
			return fmt.Errorf("open sku rules: %w", err)
		}
		rules, err = sku.LoadRules(f)
		_ = f.Close()
		if err != nil {
			return err
		}
	}

	shipCfg := shipping.Config{
		MaxAttempts:           cfg.ShippingMaxAttempts,
		BaseDelay:             cfg.ShippingBaseDelay,
		Timeout:               cfg.ShippingTimeout,
		Methods:               cfg.ShippingMethods,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		PlaceholderPrice:      cfg.PlaceholderPrice,
		Rates:                 s.Rates,
		Logger:                logger.With().Str("component", "shipping").Logger(),
	}
	skuCfg := sku.Config{Rules: rules, Logger: logger.With().Str("component", "sku").Logger()}
	catCfg := catalog.ServiceConfig{
		TTL:      cfg.CatalogTTL,
		Category: cfg.CatalogCategory,
		Logger:   logger.With().Str("component", "catalog").Logger(),
	}
	orders := &order.Submitter{Logger: logger.With().Str("component", "order").Logger()}

	if cfg.ProdigiAPIKey != "" {
		s.Breaker = resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
			WithTarget("prodigi").
			WithLogger(logger)
		partner, err := prodigi.New(prodigi.Config{
			BaseURL: cfg.ProdigiBaseURL,
			APIKey:  cfg.ProdigiAPIKey,
			HTTP: resilience.HTTPClient{
				Client:      prodigi.NewHTTPClient(cfg.ProdigiTimeout),
				Breaker:     s.Breaker,
				MaxAttempts: cfg.ProdigiMaxAttempts,
				Jitter:      0.1,
				Timeout:     cfg.ProdigiTimeout,
			},
			Logger: logger.With().Str("component", "prodigi").Logger(),
		})
		if err != nil {
			return err
		}
		s.Partner = partner
		shipCfg.Client = partner.SingleAttempt()
		skuCfg.Searcher = partner
		skuCfg.Prober = partner
		catCfg.Client = partner
		orders.Orders = partner
	} else {
		logger.Warn().Msg("prodigi_not_configured")
	}

	if s.Redis != nil {
		catCfg.Cache = catalog.NewRedisCache(s.Redis, keyPrefix)
		catCfg.Locker = lock.Locker{R: s.Redis, Prefix: keyPrefix, MaxWait: 5 * time.Second}
	}
	s.Shipping = shipping.NewService(shipCfg)
	s.Resolver = sku.NewResolver(skuCfg)
	orders.Resolver = s.Resolver
	cat, err := catalog.NewService(catCfg)
	if err != nil {
		return err
	}
	s.Catalog = cat

	if s.DB != nil {
		s.Snapshots = &repo.Snapshots{DB: s.DB}
		orders.Snapshots = s.Snapshots
	}
	s.Orders = orders

	if cfg.StripeSecretKey != "" {
		co, err := payment.NewStripeCheckout(payment.StripeConfig{
			APIKey: cfg.StripeSecretKey,
			Logger: logger.With().Str("component", "payment").Logger(),
		})
		if err != nil {
			return err
		}
		s.Checkout = co
	}
	return nil
}

// HealthChecks lists readiness probes for the configured backends.
func (s *Services) HealthChecks() []health.Check {
	var checks []health.Check
	if s.DB != nil {
		checks = append(checks, health.Postgres(s.DB))
	}
	if s.Redis != nil {
		checks = append(checks, health.Redis(s.Redis))
	}
	if s.Breaker != nil {
		checks = append(checks, health.Breaker("prodigi", s.Breaker))
	}
	return checks
}

// Idempotency returns the Idempotency-Key guard for write endpoints. It is a
// pass-through when Redis is not configured.
func (s *Services) Idempotency() common.Idem {
	return common.Idem{R: s.Redis, Prefix: keyPrefix, TTL: 24 * time.Hour}
}

// Close releases backends in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
