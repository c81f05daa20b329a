// Package metrics provides Prometheus instrumentation for the curation
// engine.
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
	// RecordsInserted counts ledger records durably inserted.
	RecordsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evermark_ledger_records_inserted_total",
		Help: "Delegation records inserted into the durable ledger",
	})

	// RecordsDuplicate counts idempotent no-op inserts.
	RecordsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "evermark_ledger_records_duplicate_total",
		Help: "Delegation records skipped as already present",
	})

	// RecordsRejected counts malformed events dropped by the normalizer,
	// partitioned by rejection reason.
	RecordsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evermark_ledger_records_rejected_total",
		Help: "Raw events rejected during normalization",
	}, []string{"reason"})

	// ReconcileLatency tracks reconcile call duration.
	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "evermark_reconcile_duration_seconds",
		Help:    "Reconcile call latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "evermark_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// FeedPolls counts event-feed poll attempts by outcome.
	FeedPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evermark_feed_polls_total",
		Help: "Event feed poll attempts",
	}, []string{"outcome"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "evermark_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "evermark_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label to avoid route introspection;
		// cardinality is bounded by the small fixed route set.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
