package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(breakerState) }

var breakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Circuit breaker state per gateway: 0 closed, 1 half-open, 2 open.",
	},
	[]string{"name"},
)

func SetBreakerState(name string, state string) {
	var v float64
	switch state {
	case "open":
		v = 2
	case "half_open":
		v = 1
	}
	breakerState.WithLabelValues(name).Set(v)
}
