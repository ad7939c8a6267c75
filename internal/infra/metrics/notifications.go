package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal, rateLimitedTotal) }

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by type, channel and result.",
		},
		[]string{"type", "channel", "result"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter, per route.",
		},
		[]string{"route"},
	)
)

func IncNotification(kind, channel, result string) {
	notificationsTotal.WithLabelValues(norm(kind), norm(channel), norm(result)).Inc()
}

func IncRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}
