package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess     = "success"
	ResultConflict    = "conflict"
	ResultNotFound    = "not_found"
	ResultInvalid     = "invalid"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
	ResultQueued      = "queued"
	ResultReverted    = "reverted"
	ResultRetried     = "retried"
	ResultDropped     = "dropped"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"service", "method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "library_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "path", "status"})

	catalogOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_catalog_operations_total",
		Help: "Borrow and return outcomes at the catalog",
	}, []string{"operation", "result"})

	ledgerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_ledger_calls_total",
		Help: "Calls from the catalog to the user ledger by outcome",
	}, []string{"operation", "result"})

	ledgerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "library_ledger_call_duration_seconds",
		Help:    "Latency of calls from the catalog to the user ledger",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	ledgerSyncJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_ledger_sync_jobs_total",
		Help: "Queued ledger updates by final outcome",
	}, []string{"result"})

	ledgerSyncQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "library_ledger_sync_queue_length",
		Help: "Ledger updates waiting to be delivered",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(service, method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	httpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// ObserveCatalogOperation counts a borrow or return outcome
func ObserveCatalogOperation(operation, result string) {
	catalogOperations.WithLabelValues(operation, result).Inc()
}

// ObserveLedgerCall records one remote ledger call
func ObserveLedgerCall(operation, result string, duration time.Duration) {
	ledgerCalls.WithLabelValues(operation, result).Inc()
	ledgerCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func ObserveLedgerSyncJob(result string) {
	ledgerSyncJobs.WithLabelValues(result).Inc()
}

func SetLedgerSyncQueueLength(n int64) {
	if n < 0 {
		n = 0
	}
	ledgerSyncQueueLength.Set(float64(n))
}
