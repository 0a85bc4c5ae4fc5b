package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivated,
		subscriptionsExpired,
		subscriptionsPromoted,
	)
}

var (
	subscriptionsActivated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Activations by trigger source (webhook/poll/sweep/admin).",
		},
		[]string{"source"},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscriptions finished by the expiry worker.",
		},
	)

	subscriptionsPromoted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_promoted_total",
			Help: "Scheduled subscriptions promoted to active by the expiry worker.",
		},
	)
)

func IncActivation(source string) {
	subscriptionsActivated.WithLabelValues(norm(source)).Inc()
}

func IncSubscriptionsExpired(n int) {
	subscriptionsExpired.Add(float64(n))
}

func IncSubscriptionsPromoted(n int) {
	subscriptionsPromoted.Add(float64(n))
}
