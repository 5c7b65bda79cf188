// Package metrics provides Prometheus metrics for the content hub.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contenthub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Resolver metrics
	resolveTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_resolve_total",
			Help: "Read-through lookups by target kind and serving tier (miss when no tier had it)",
		},
		[]string{"target", "tier"},
	)

	resolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contenthub_resolve_duration_seconds",
			Help:    "Read-through lookup duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)

	tierErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_tier_errors_total",
			Help: "Errors from a resolution tier that were treated as a miss",
		},
		[]string{"tier"},
	)

	// Cache metrics
	cacheInvalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_cache_invalidations_total",
			Help: "Cache keys deleted after writes",
		},
		[]string{"status"},
	)

	// Pump metrics
	pumpRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_pump_runs_total",
			Help: "Pump runs by outcome",
		},
		[]string{"status"},
	)

	pumpDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "contenthub_pump_duration_seconds",
			Help:    "Pump run duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	pumpRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "contenthub_pump_records",
			Help: "Records loaded per table by the last pump",
		},
		[]string{"table"},
	)

	pumpFileErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_pump_file_errors_total",
			Help: "Per-file pump errors by kind",
		},
		[]string{"kind"},
	)

	// Blob store metrics
	blobOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contenthub_blob_operation_duration_seconds",
			Help:    "Blob store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	blobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_blob_operations_total",
			Help: "Total blob store operations",
		},
		[]string{"operation", "status"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contenthub_auth_attempts_total",
			Help: "Total authentication attempts on protected routes",
		},
		[]string{"result"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "contenthub_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordResolve records which tier served a lookup ("miss" when none did).
func RecordResolve(target, tier string, duration time.Duration) {
	resolveTotal.WithLabelValues(target, tier).Inc()
	resolveDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// RecordTierError records a tier failure that fell through to the next tier.
func RecordTierError(tier string) {
	tierErrorsTotal.WithLabelValues(tier).Inc()
}

// RecordInvalidation records deleted cache keys.
func RecordInvalidation(keys int, ok bool) {
	cacheInvalidationsTotal.WithLabelValues(outcome(ok)).Add(float64(keys))
}

// RecordPump records a finished pump run.
func RecordPump(duration time.Duration, ok bool, perTable map[string]int, errorKinds map[string]int) {
	pumpRunsTotal.WithLabelValues(outcome(ok)).Inc()
	pumpDuration.Observe(duration.Seconds())
	for table, n := range perTable {
		pumpRecords.WithLabelValues(table).Set(float64(n))
	}
	for kind, n := range errorKinds {
		pumpFileErrorsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordPumpBusy records a pump rejected because another run held the lock.
func RecordPumpBusy() {
	pumpRunsTotal.WithLabelValues("busy").Inc()
}

// RecordBlobOperation records a blob store operation.
func RecordBlobOperation(operation string, duration time.Duration, success bool) {
	blobOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	blobOperationsTotal.WithLabelValues(operation, outcome(success)).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// AddSSEConnections adjusts the active SSE connection gauge by delta.
func AddSSEConnections(delta int) {
	sseConnectionsActive.Add(float64(delta))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. Requests
// are labelled by their ServeMux pattern to keep label cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		RecordHTTPRequest(r.Method, route, rw.statusCode, time.Since(start))
	})
}
