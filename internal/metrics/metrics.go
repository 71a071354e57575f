// Package metrics exposes Prometheus collectors for the cidades pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	stubsDispatchedTotal       *prometheus.CounterVec
	pagesFetchedTotal          *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	recordsWrittenTotal        *prometheus.CounterVec
	invocationsTotal           *prometheus.CounterVec
	invocationDurationSeconds  *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		stubsDispatchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidades_stubs_dispatched_total",
				Help: "Total number of city stubs handed to the queue, labeled by status.",
			},
			[]string{"status"},
		)

		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidades_pages_fetched_total",
				Help: "Total number of listing pages fetched during pagination, labeled by status.",
			},
			[]string{"status"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidades_notifications_total",
				Help: "Total number of enrichment notifications published, labeled by field and status.",
			},
			[]string{"field", "status"},
		)

		recordsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidades_records_written_total",
				Help: "Total number of city records written to the object store, labeled by status.",
			},
			[]string{"status"},
		)

		invocationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cidades_invocations_total",
				Help: "Total number of stage invocations, labeled by stage and status.",
			},
			[]string{"stage", "status"},
		)

		invocationDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cidades_invocation_duration_seconds",
				Help:    "Histogram of stage invocation latencies, labeled by stage.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cidades_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter, labeled by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveDispatch counts one stub enqueue attempt.
func ObserveDispatch(status string) {
	Init()
	stubsDispatchedTotal.WithLabelValues(status).Inc()
}

// ObservePageFetch counts one listing page fetch.
func ObservePageFetch(status string) {
	Init()
	pagesFetchedTotal.WithLabelValues(status).Inc()
}

// ObserveNotification counts one enrichment publish.
func ObserveNotification(field, status string) {
	Init()
	notificationsTotal.WithLabelValues(field, status).Inc()
}

// ObserveRecordWrite counts one object-store put.
func ObserveRecordWrite(status string) {
	Init()
	recordsWrittenTotal.WithLabelValues(status).Inc()
}

// ObserveInvocation records the outcome and latency of one stage invocation.
func ObserveInvocation(stage, status string, duration time.Duration) {
	Init()
	invocationsTotal.WithLabelValues(stage, status).Inc()
	invocationDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records how long a fetch waited for its host's token.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}
