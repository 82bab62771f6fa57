package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsProcessedTotal, jobsRetriedTotal, jobLatencyMs, jobsClaimedTotal)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_processed_total",
		Help: "Total number of generation jobs processed, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobsRetriedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_retried_total",
		Help: "Total number of jobs re-enqueued after a failure.",
	},
)

var jobsClaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_claimed_total",
		Help: "Total number of jobs claimed by the scheduler.",
	},
)

var jobLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_job_duration_ms",
		Help:    "End-to-end job execution duration in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"type"},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRetried() { jobsRetriedTotal.Inc() }

func IncJobClaimed() { jobsClaimedTotal.Inc() }

func ObserveJobDuration(jobType string, ms float64) {
	jobLatencyMs.WithLabelValues(norm(jobType)).Observe(ms)
}
