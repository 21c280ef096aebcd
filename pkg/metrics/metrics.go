package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pool metrics
	WorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_workers_total",
			Help: "Number of workers registered with the pool",
		},
	)

	WorkersMissing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_workers_missing",
			Help: "Number of registered workers whose container no longer resolves",
		},
	)

	WorkersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_workers_created_total",
			Help: "Total number of worker containers created",
		},
	)

	WorkersRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_workers_removed_total",
			Help: "Total number of worker containers removed",
		},
	)

	// Execution metrics
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_executions_total",
			Help: "Total number of function executions by status",
		},
		[]string{"status"},
	)

	ExecutionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_execution_duration_seconds",
			Help:    "End-to-end execution duration as observed by the pool",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Reconciler metrics
	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_reconciliation_cycles_total",
			Help: "Total number of pool reconciliation cycles",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkersMissing)
	prometheus.MustRegister(WorkersCreated)
	prometheus.MustRegister(WorkersRemoved)
	prometheus.MustRegister(ExecutionsTotal)
	prometheus.MustRegister(ExecutionDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
