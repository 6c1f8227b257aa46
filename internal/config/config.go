package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	LogLevel           string
	LogFormat          string
	DatabaseURL        string
	DBAutoMigrate      bool
	MigrationsPath     string
	RedisURL           string
	CORSAllowedOrigins []string
	RateLimit          string

	ProdigiAPIKey       string
	ProdigiBaseURL      string
	ProdigiTimeout      time.Duration
	ProdigiMaxAttempts  int
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	StripeSecretKey     string

	Currency              string
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	MaxLineTotal          decimal.Decimal
	MaxShippingCost       decimal.Decimal

	ShippingMaxAttempts int
	ShippingBaseDelay   time.Duration
	ShippingTimeout     time.Duration
	ShippingMethods     []string
	PlaceholderPrice    decimal.Decimal

	CatalogTTL             time.Duration
	CatalogRefreshInterval time.Duration
	CatalogCategory        string
	SKURulesPath           string

	OTLPEndpoint     string
	TracingExporter  string
	MetricsNamespace string
	MetricsBuckets   string
}

// Load reads configuration from environment variables and optional .env files.
// Only malformed values are errors; every partner credential is optional so
// the service can run in estimate-only mode.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	r := &reader{k: k}

	cfg := &Config{
		AppEnv:             r.str("APP_ENV", "development"),
		Port:               r.str("PORT", "8080"),
		LogLevel:           r.str("LOG_LEVEL", "info"),
		LogFormat:          r.str("LOG_FORMAT", "json"),
		DatabaseURL:        r.str("DATABASE_URL", ""),
		DBAutoMigrate:      r.flag("DB_AUTO_MIGRATE"),
		MigrationsPath:     r.str("MIGRATIONS_PATH", "file://db/migrations"),
		RedisURL:           r.str("REDIS_URL", ""),
		CORSAllowedOrigins: r.list("CORS_ALLOWED_ORIGINS", ""),
		RateLimit:          r.str("RATE_LIMIT", "120-M"),

		ProdigiAPIKey:       r.str("PRODIGI_API_KEY", ""),
		ProdigiBaseURL:      r.str("PRODIGI_BASE_URL", ""),
		ProdigiTimeout:      r.dur("PRODIGI_TIMEOUT", 15*time.Second),
		ProdigiMaxAttempts:  r.integer("PRODIGI_MAX_ATTEMPTS", 2),
		BreakerMinRequests:  r.integer("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio: r.float("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenFor:      r.dur("BREAKER_OPEN_FOR", 30*time.Second),
		StripeSecretKey:     r.str("STRIPE_SECRET_KEY", ""),

		Currency:              strings.ToUpper(r.str("CURRENCY", "USD")),
		TaxRate:               r.decimal("TAX_RATE", "0.08"),
		FreeShippingThreshold: r.decimal("FREE_SHIPPING_THRESHOLD", "100"),
		MaxLineTotal:          r.decimal("MAX_LINE_TOTAL", "100000"),
		MaxShippingCost:       r.decimal("MAX_SHIPPING_COST", "500"),

		ShippingMaxAttempts: r.integer("SHIPPING_MAX_ATTEMPTS", 3),
		ShippingBaseDelay:   r.dur("SHIPPING_BASE_DELAY", time.Second),
		ShippingTimeout:     r.dur("SHIPPING_TIMEOUT", 10*time.Second),
		ShippingMethods:     r.list("SHIPPING_METHODS", "Standard"),
		PlaceholderPrice:    r.decimal("SHIPPING_PLACEHOLDER_PRICE", "25.00"),

		CatalogTTL:             r.dur("CATALOG_TTL", time.Hour),
		CatalogRefreshInterval: r.dur("CATALOG_REFRESH_INTERVAL", 30*time.Minute),
		CatalogCategory:        r.str("CATALOG_CATEGORY", ""),
		SKURulesPath:           r.str("SKU_RULES_PATH", ""),

		OTLPEndpoint:     r.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		TracingExporter:  r.str("TRACING_EXPORTER", "none"),
		MetricsNamespace: r.str("METRICS_NAMESPACE", "printshop"),
		MetricsBuckets:   r.str("METRICS_BUCKETS_MS", ""),
	}
	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if cfg.TaxRate.IsNegative() || cfg.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errors.New("TAX_RATE must be in [0, 1)")
	}
	if len(cfg.Currency) != 3 {
		return nil, fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", cfg.Currency)
	}
	if cfg.DBAutoMigrate && cfg.DatabaseURL == "" {
		return nil, errors.New("DB_AUTO_MIGRATE requires DATABASE_URL")
	}
	return cfg, nil
}

// HTTPAddr returns the listen address derived from PORT.
func (c *Config) HTTPAddr() string {
	port := strings.TrimPrefix(strings.TrimSpace(c.Port), ":")
	if port == "" {
		port = "8080"
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "prod", "production":
		return true
	}
	return false
}

// reader pulls typed values out of koanf. Unset keys take the default;
// malformed numbers are collected as errors. A malformed duration falls back
// to the default so a typo in a timeout never keeps the service down.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) raw(key string) string { return strings.TrimSpace(r.k.String(key)) }

func (r *reader) str(key, def string) string {
	if v := r.raw(key); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key, def string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, def), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) flag(key string) bool {
	v, err := strconv.ParseBool(r.raw(key))
	return err == nil && v
}

func (r *reader) dur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(r.raw(key)); err == nil {
		return d
	}
	return def
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) decimal(key, def string) decimal.Decimal {
	v := r.raw(key)
	if v == "" {
		return decimal.RequireFromString(def)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.fail(key, err)
		return decimal.RequireFromString(def)
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v := r.raw(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.raw(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests runs Load with the given variables set, restoring the previous
// environment afterwards. An empty value unsets the variable.
func LoadForTests(vars map[string]string) (*Config, error) {
	restore := make(map[string]*string, len(vars))
	for key, val := range vars {
		if prev, ok := os.LookupEnv(key); ok {
			restore[key] = &prev
		} else {
			restore[key] = nil
		}
		if err := setenv(key, val); err != nil {
			return nil, err
		}
	}
	defer func() {
		for key, prev := range restore {
			if prev == nil {
				_ = os.Unsetenv(key)
			} else {
				_ = os.Setenv(key, *prev)
			}
		}
	}()
	return Load()
}

func setenv(key, val string) error {
	if val == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, val)
}
