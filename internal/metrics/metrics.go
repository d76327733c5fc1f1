// Package metrics provides Prometheus instrumentation for the trading engine.
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
	// CacheRequests counts cache lookups by cache name and result (hit, miss, inflight).
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covinance_cache_requests_total",
		Help: "Cache lookups by result",
	}, []string{"cache", "result"})

	// CacheEvictions counts entries dropped by TTL expiry or the LRU bound.
	CacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covinance_cache_evictions_total",
		Help: "Cache evictions by reason",
	}, []string{"cache", "reason"})

	// RemoteRequests counts outbound calls to the market source by endpoint and outcome.
	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covinance_remote_requests_total",
		Help: "Remote market source requests",
	}, []string{"endpoint", "outcome"})

	// RemoteLatency tracks remote call latency including retries.
	RemoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "covinance_remote_latency_seconds",
		Help:    "Remote market source latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"endpoint"})

	// FanOutOmitted counts sub-queries folded into "omitted results".
	FanOutOmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covinance_fanout_omitted_total",
		Help: "Fan-out sub-queries that failed or timed out",
	}, []string{"query"})

	// Commands counts facade actions by action and status.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "covinance_commands_total",
		Help: "Facade commands by status",
	}, []string{"action", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "covinance_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	}, []string{"method", "path", "status"})
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
		HTTPRequestDuration.
			WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)).
			Observe(time.Since(start).Seconds())
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
