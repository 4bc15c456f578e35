package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(NotificationSendTotal) }

// Notification deliveries grouped by kind and status.
// kind: welcome|receipt|admin|task
// status: sent|error|dropped
var NotificationSendTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notification_send_total",
		Help: "Payment notification emails by kind and delivery status.",
	},
	[]string{"kind", "status"},
)
