package resilience

import "github.com/prometheus/client_golang/prometheus"

// Collectors are registered on the default registry at init so every
// breaker in the process reports under the same series.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shipquote",
		Name:      "breaker_state",
		Help:      "Breaker state per target: 0 closed, 1 open, 2 half-open.",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipquote",
		Name:      "breaker_transition_total",
		Help:      "Breaker state transitions per target.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipquote",
		Name:      "breaker_open_total",
		Help:      "Times a breaker opened.",
	}, []string{"target"})

	UpstreamAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shipquote",
		Name:      "upstream_attempts_total",
		Help:      "Outbound HTTP attempts per target and result (ok, error, server_error, rejected).",
	}, []string{"target", "result"})
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal, UpstreamAttempts)
}
