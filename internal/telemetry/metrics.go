package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsCompleted       = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_jobs_completed_total", Help: "Jobs whose message was delivered"})
	JobsRetried         = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_jobs_retried_total", Help: "Failed attempts scheduled for retry"})
	JobsFailed          = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dispatch_jobs_failed_total", Help: "Jobs that failed terminally"}, []string{"reason"})
	JobsStalled         = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_jobs_stalled_total", Help: "Jobs whose lease expired and were requeued"})
	RecurrencesEnqueued = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_recurrences_enqueued_total", Help: "Next occurrences of recurring schedules enqueued"})
	RateLimited         = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_rate_limited_total", Help: "Job starts delayed by the rate limiter"})
	InFlightGauge       = prometheus.NewGauge(prometheus.GaugeOpts{Name: "dispatch_jobs_inflight", Help: "Jobs currently being processed by this worker"})
	QueueDepth          = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "dispatch_queue_depth", Help: "Jobs per queue state"}, []string{"state"})
	SendDuration        = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_send_duration_seconds",
		Help:    "Latency of gateway send calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsCompleted,
			JobsRetried,
			JobsFailed,
			JobsStalled,
			RecurrencesEnqueued,
			RateLimited,
			InFlightGauge,
			QueueDepth,
			SendDuration,
		)
	})
	return promhttp.Handler()
}
