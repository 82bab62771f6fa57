package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(queueDepth, workersBusy)
}

var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "generation_queue_depth",
		Help: "Jobs per queue collection, sampled by the monitor loop.",
	},
	[]string{"state"}, // 'pending', 'processing', 'completed', 'failed'
)

var workersBusy = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "generation_workers_busy",
		Help: "Number of workers currently executing a job.",
	},
)

func SetQueueDepth(state string, n int64) {
	queueDepth.WithLabelValues(norm(state)).Set(float64(n))
}

func SetWorkersBusy(n int) { workersBusy.Set(float64(n)) }
