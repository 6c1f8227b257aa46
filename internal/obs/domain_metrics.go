package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ShippingQuoteTotal counts shipping calculations by outcome (quoted, estimated, failed, invalid).
	ShippingQuoteTotal *prometheus.CounterVec
	// ShippingQuoteAttempts counts individual partner quote attempts.
	ShippingQuoteAttempts *prometheus.CounterVec
	// ShippingFallbackTotal counts fallback estimates by the reason the real quote was skipped.
	ShippingFallbackTotal *prometheus.CounterVec
	// ShippingQuoteLatency records end-to-end shipping calculation latency in milliseconds.
	ShippingQuoteLatency *prometheus.HistogramVec
	// SKUAlternativeLookupTotal counts alternative SKU lookups by the source that answered.
	SKUAlternativeLookupTotal *prometheus.CounterVec
	// CatalogFetchTotal counts frame catalog reads by result.
	CatalogFetchTotal *prometheus.CounterVec
	// CheckoutSessionTotal counts payment session creation outcomes.
	CheckoutSessionTotal *prometheus.CounterVec
	// PricingSnapshotTotal counts snapshot persistence outcomes.
	PricingSnapshotTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ShippingQuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_quote_total",
			Help:      "Count of shipping calculations by outcome.",
		}, []string{"outcome"})
		ShippingQuoteAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_quote_attempts_total",
			Help:      "Count of partner quote attempts by method and result.",
		}, []string{"method", "result"})
		ShippingFallbackTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_fallback_total",
			Help:      "Count of fallback shipping estimates by reason.",
		}, []string{"reason"})
		ShippingQuoteLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shipping_quote_duration_ms",
			Help:      "Latency of shipping calculations in milliseconds.",
			Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"outcome"})
		SKUAlternativeLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sku_alternative_lookup_total",
			Help:      "Count of alternative SKU lookups by answering source.",
		}, []string{"source"})
		CatalogFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetch_total",
			Help:      "Count of frame catalog reads by result.",
		}, []string{"result"})
		CheckoutSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_total",
			Help:      "Count of checkout session creation outcomes.",
		}, []string{"provider", "result"})
		PricingSnapshotTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_snapshot_total",
			Help:      "Count of pricing snapshot writes by result.",
		}, []string{"result"})

		ShippingQuoteTotal = register(reg, ShippingQuoteTotal)
		ShippingQuoteAttempts = register(reg, ShippingQuoteAttempts)
		ShippingFallbackTotal = register(reg, ShippingFallbackTotal)
		ShippingQuoteLatency = register(reg, ShippingQuoteLatency)
		SKUAlternativeLookupTotal = register(reg, SKUAlternativeLookupTotal)
		CatalogFetchTotal = register(reg, CatalogFetchTotal)
		CheckoutSessionTotal = register(reg, CheckoutSessionTotal)
		PricingSnapshotTotal = register(reg, PricingSnapshotTotal)
	})
}

// Inc increments vec when it has been registered. Packages call it so they
// work without metrics in tests and tools.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// ObserveShippingLatency records a shipping calculation duration.
func ObserveShippingLatency(outcome string, d time.Duration) {
	if ShippingQuoteLatency == nil {
		return
	}
	ShippingQuoteLatency.WithLabelValues(outcome).Observe(DurationMillis(d))
}
