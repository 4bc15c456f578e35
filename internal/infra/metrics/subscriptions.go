package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsProvisionedTotal,
		subscriptionsExpiredTotal,
		reconcileSweepTotal,
	)
}

var (
	subscriptionsProvisionedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_provisioned_total",
			Help: "Subscription rows created or reused by provisioning, by plan type.",
		},
		[]string{"plan_type"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions flipped to EXPIRED by the expiry worker.",
		},
	)

	// result: done|empty|list_error
	reconcileSweepTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_sweeps_total",
			Help: "Reconcile worker sweeps over stale pending payments, by result.",
		},
		[]string{"result"},
	)
)

func IncSubscriptionsProvisioned(planType string, count int) {
	subscriptionsProvisionedTotal.WithLabelValues(planType).Add(float64(count))
}

func IncSubscriptionsExpired(count int64) {
	subscriptionsExpiredTotal.Add(float64(count))
}

func IncReconcileSweep(result string) {
	reconcileSweepTotal.WithLabelValues(result).Inc()
}
