// Package catalog expands the partner product catalog into selectable frame
// options and caches the result.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/obs"
)

const (
	framesKey   = "catalog:frames:v1"
	refreshLock = "catalog:refresh"
)

// DefaultTTL is how long an expanded catalog is served from cache.
const DefaultTTL = time.Hour

// Locker serialises catalog refreshes across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Client   fulfillment.CatalogClient
	Cache    Cache
	TTL      time.Duration
	Locker   Locker
	Category string
	Logger   zerolog.Logger
}

// Service serves frame options from the cache, refilling it from the partner.
type Service struct {
	client   fulfillment.CatalogClient
	cache    Cache
	ttl      time.Duration
	locker   Locker
	category string
	logger   zerolog.Logger
}

// errNoPartner makes every fetch fail over to FallbackOptions when the service
// runs without partner credentials.
var errNoPartner = errors.New("catalog: partner client not configured")

// NewService constructs a Service. A nil cache uses an in-process MemoryCache;
// a nil client serves FallbackOptions only.
func NewService(cfg ServiceConfig) (*Service, error) {
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache(nil)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		client:   cfg.Client,
		cache:    cache,
		ttl:      ttl,
		locker:   cfg.Locker,
		category: cfg.Category,
		logger:   cfg.Logger,
	}, nil
}

// FrameOptions returns the expanded catalog. It never fails: any cache or
// partner problem degrades to FallbackOptions, which are not cached.
func (s *Service) FrameOptions(ctx context.Context) []FrameOption {
	var cached []FrameOption
	ok, err := s.cache.GetJSON(ctx, framesKey, &cached)
	if err != nil {
		s.log(ctx).Warn().Err(err).Msg("catalog_cache_read_failed")
	}
	if ok && len(cached) > 0 {
		obs.Inc(obs.CatalogFetchTotal, "cache_hit")
		return cached
	}
	opts, err := s.fetch(ctx)
	if err != nil {
		obs.Inc(obs.CatalogFetchTotal, "fallback")
		s.log(ctx).Warn().Err(err).Msg("catalog_fallback")
		return FallbackOptions()
	}
	return opts
}

// FrameCombinations groups FrameOptions by size bucket.
func (s *Service) FrameCombinations(ctx context.Context) []Combination {
	return Combinations(s.FrameOptions(ctx))
}

// ClearCache drops the cached catalog so the next read refetches it.
func (s *Service) ClearCache(ctx context.Context) error {
	if err := s.cache.Delete(ctx, framesKey); err != nil {
		return fmt.Errorf("catalog: clear cache: %w", err)
	}
	return nil
}

// Refresh refetches the catalog and replaces the cached copy, holding the
// refresh lock when one is configured.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	var n int
	run := func(ctx context.Context) error {
		opts, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		n = len(opts)
		return nil
	}
	if s.locker == nil {
		return n, run(ctx)
	}
	err := s.locker.WithLock(ctx, refreshLock, 2*time.Minute, run)
	return n, err
}

func (s *Service) fetch(ctx context.Context) ([]FrameOption, error) {
	if s.client == nil {
		return nil, errNoPartner
	}
	products, err := s.client.GetAllProducts(ctx, s.category)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch products: %w", err)
	}
	opts := expand(products)
	if len(opts) == 0 {
		return nil, fmt.Errorf("catalog: no frame products among %d partner products", len(products))
	}
	obs.Inc(obs.CatalogFetchTotal, "fetched")
	if err := s.cache.SetJSON(ctx, framesKey, opts, s.ttl); err != nil {
		s.log(ctx).Warn().Err(err).Msg("catalog_cache_write_failed")
	}
	s.log(ctx).Info().Int("products", len(products)).Int("options", len(opts)).Msg("catalog_fetched")
	return opts, nil
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}
