package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splicer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "splicer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job metrics
var (
	JobsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_jobs_started_total",
			Help: "Total number of job attempts started",
		},
		[]string{"type"},
	)

	// JobsFinishedTotal counts attempt outcomes: completed, retry, failed, cancelled, released.
	JobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_jobs_finished_total",
			Help: "Total number of job attempts by outcome",
		},
		[]string{"type", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splicer_job_duration_seconds",
			Help:    "Job attempt duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"type"},
	)

	JobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "splicer_jobs_active",
			Help: "Number of jobs currently running in this process",
		},
		[]string{"type"},
	)

	QueueJobs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "splicer_queue_jobs",
			Help: "Number of persisted jobs by type and state",
		},
		[]string{"type", "state"},
	)

	StaleJobsReclaimedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splicer_stale_jobs_reclaimed_total",
			Help: "Total number of active jobs reclaimed after a lost heartbeat",
		},
	)
)

// Media metrics
var (
	EncoderRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splicer_encoder_runs_total",
			Help: "Total number of encoder invocations by operation and status",
		},
		[]string{"operation", "status"},
	)

	EncoderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "splicer_encoder_duration_seconds",
			Help:    "Encoder wall-clock duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"operation"},
	)

	TransferBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splicer_transfer_bytes_total",
			Help: "Total bytes written to remote storage",
		},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "splicer_upload_bytes_total",
			Help: "Total bytes accepted by the upload store",
		},
	)
)
