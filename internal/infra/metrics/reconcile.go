package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileOutcomes,
		reconcileDurationMs,
	)
}

var (
	reconcileOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_outcomes_total",
			Help: "Finalize outcomes by trigger source.",
		},
		[]string{"source", "outcome"},
	)

	reconcileDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_ms",
			Help:    "Finalize latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"source"},
	)
)

func ObserveReconcile(source, outcome string, latencyMs int) {
	reconcileOutcomes.WithLabelValues(norm(source), norm(outcome)).Inc()
	reconcileDurationMs.WithLabelValues(norm(source)).Observe(float64(latencyMs))
}
