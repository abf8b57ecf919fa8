package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "companion_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "companion_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		},
		[]string{"method", "path"},
	)

	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_turns_total",
			Help: "Total number of workflow turns by response mode and outcome.",
		},
		[]string{"workflow", "status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "companion_stage_duration_seconds",
			Help:    "Workflow stage duration in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	SummarizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_summarizations_total",
			Help: "Total number of history summarizations.",
		},
		[]string{"status"},
	)

	SoftFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "companion_soft_failures_total",
			Help: "Failures that degraded a turn without aborting it.",
		},
		[]string{"component"},
	)

	MemoriesExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "companion_memories_extracted_total",
			Help: "Total number of long-term memories stored.",
		},
	)

	ThreadQueueRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "companion_thread_queue_rejections_total",
			Help: "Messages rejected because their thread queue was full.",
		},
	)

	InflightTurns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "companion_inflight_turns",
			Help: "Number of turns currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPResponseSize,
		TurnsTotal,
		StageDuration,
		SummarizationsTotal,
		SoftFailuresTotal,
		MemoriesExtracted,
		ThreadQueueRejections,
		InflightTurns,
	)
}
