package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		jobRuns,
		jobPermanentFailures,
	)
}

var (
	jobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_job_runs_total",
			Help: "Background job cycles by job name and result.",
		},
		[]string{"job", "result"},
	)

	jobPermanentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_job_permanent_failures_total",
			Help: "Jobs that exhausted their retry budget.",
		},
		[]string{"job"},
	)
)

func IncJobRun(job string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	jobRuns.WithLabelValues(norm(job), result).Inc()
}

func IncJobPermanentFailure(job string) {
	jobPermanentFailures.WithLabelValues(norm(job)).Inc()
}
