package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker metrics, labelled by partner name.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "partner_breaker_state",
		Help: "Breaker position per partner (0 closed, 1 open, 2 half-open).",
	}, []string{"partner"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partner_breaker_transitions_total",
		Help: "Breaker state changes per partner.",
	}, []string{"partner", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partner_breaker_opened_total",
		Help: "Times the breaker opened per partner.",
	}, []string{"partner"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}

func setStateGauge(partner string, s State) {
	BreakerState.WithLabelValues(partner).Set(float64(s))
}

func countTransition(partner string, from, to State) {
	BreakerTransitions.WithLabelValues(partner, from.String(), to.String()).Inc()
	if to == Open {
		BreakerOpenedTotal.WithLabelValues(partner).Inc()
	}
}
