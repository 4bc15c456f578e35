package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		PaymentVerifyRequests,
		PaymentVerifyDuration,
		WebhookEventsTotal,
		PaymentRetryAttempts,
	)
}

var (
	// Count of verify calls grouped by gateway and result.
	// result: ok|invalid_signature|not_found|not_completed|locked|error
	PaymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Count of /api/v1/payments/verify calls by gateway and result.",
		},
		[]string{"gateway", "result"},
	)

	// Latency of the verify handler grouped by result.
	PaymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of /api/v1/payments/verify handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Webhook deliveries grouped by event and outcome.
	// outcome: handled|ignored|invalid_signature|error
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Razorpay webhook deliveries by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// Retry attempts past the first, per operation.
	PaymentRetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_retry_attempts_total",
			Help: "Verification retries past the first attempt, by operation.",
		},
		[]string{"op"},
	)
)
