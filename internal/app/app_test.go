package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/app"
	"github.com/noah-isme/backend-printshop/internal/catalog"
	"github.com/noah-isme/backend-printshop/internal/config"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

func baseConfig() *config.Config {
	return &config.Config{
		Currency:              "USD",
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingMaxAttempts:   1,
		ShippingBaseDelay:     time.Millisecond,
		ShippingTimeout:       time.Second,
		ShippingMethods:       []string{"Standard"},
		CatalogTTL:            time.Hour,
	}
}

func TestBuildEstimateOnlyMode(t *testing.T) {
	svc, err := app.Build(t.Context(), baseConfig(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	require.Nil(t, svc.Partner)
	require.Nil(t, svc.Checkout)
	require.Nil(t, svc.Snapshots)
	require.Empty(t, svc.HealthChecks())

	price := decimal.RequireFromString("49.99")
	out := svc.Shipping.CalculateGuaranteed(t.Context(),
		[]shipping.Item{{SKU: "GLOBAL-CAN-16X20", Quantity: 1, Price: &price}},
		address.Address{City: "London", CountryCode: "GB"}, shipping.Options{}, false)
	require.True(t, out.Estimated())
	require.True(t, out.Result.IsEstimated)

	require.Equal(t, catalog.FallbackOptions(), svc.Catalog.FrameOptions(t.Context()))

	got, err := svc.Resolver.Resolve(t.Context(), "global-can-16x20")
	require.NoError(t, err)
	require.Equal(t, "GLOBAL-CAN-16X20", got)
}

func TestBuildWithRedisAndPartner(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.ProdigiAPIKey = "test-key"
	cfg.ProdigiBaseURL = "http://127.0.0.1:1"
	cfg.StripeSecretKey = "sk_test_123"

	svc, err := app.Build(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	require.NotNil(t, svc.Partner)
	require.NotNil(t, svc.Checkout)
	require.NotNil(t, svc.Orders.Orders)
	checks := svc.HealthChecks()
	require.Len(t, checks, 2)
	require.Equal(t, "redis", checks[0].Name)
	require.NoError(t, checks[0].Ping(t.Context()))
	require.Equal(t, "prodigi", checks[1].Name)
}

func TestBuildLoadsRuleOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaultSku: GLOBAL-CAN-12X12\n"), 0o600))
	cfg := baseConfig()
	cfg.SKURulesPath = path

	svc, err := app.Build(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	require.Equal(t, "GLOBAL-CAN-12X12", svc.Resolver.ProductSKU("huge", "odd", "unknown"))

	cfg.SKURulesPath = filepath.Join(dir, "missing.yaml")
	_, err = app.Build(t.Context(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/printshop?sslmode=disable", app.MigrationURL("postgres://u:p@db:5432/printshop?sslmode=disable"))
	require.Equal(t, "pgx5://db/printshop", app.MigrationURL("postgresql://db/printshop"))
	require.Equal(t, "pgx5://db/printshop", app.MigrationURL("pgx5://db/printshop"))
}
