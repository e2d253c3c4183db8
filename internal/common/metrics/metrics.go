// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueryCompilations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_compilations_total",
			Help: "Total number of query structure compilations by result",
		},
		[]string{"result"},
	)

	QueryCompileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "query_compile_duration_seconds",
			Help:    "Duration of query compilation in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests sent to Elasticsearch",
		},
		[]string{"index", "result"},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_duration_seconds",
			Help: "Duration of Elasticsearch search requests in seconds",
		},
		[]string{"index"},
	)

	DocumentsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_loaded_total",
			Help: "Documents bulk loaded from Oracle by outcome",
		},
		[]string{"index", "outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"route", "method", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Result labels a counter by error presence.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
