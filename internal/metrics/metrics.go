// Package metrics registers the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pattern_analyzer_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pattern_analyzer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Analysis pipeline
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_analyses_total",
			Help: "Total number of analyze calls by outcome",
		},
		[]string{"outcome"}, // "ok", "parse_error", "error"
	)

	RowsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_rows_analyzed_total",
			Help: "Total number of uploaded rows scored",
		},
	)

	AnomaliesFlagged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_anomalies_flagged_total",
			Help: "Total number of rows flagged as anomalous",
		},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pattern_analyzer_analysis_duration_seconds",
			Help:    "Duration of parse, preprocess and detection",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// Result cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_result_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_result_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_result_cache_evictions_total",
			Help: "Total number of result cache evictions",
		},
		[]string{"reason"}, // "expired", "capacity"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pattern_analyzer_result_cache_entries",
			Help: "Current number of cached result sets",
		},
	)

	// Stream
	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pattern_analyzer_stream_connections",
			Help: "Active live stream connections",
		},
	)

	StreamEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_stream_events_sent_total",
			Help: "Total number of simulated events sent",
		},
	)

	// Explainer circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pattern_analyzer_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pattern_analyzer_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)
)

// RecordHTTPRequest records one finished request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordAnalysis records a successful analyze call.
func RecordAnalysis(rows, anomalies int, d time.Duration) {
	AnalysesTotal.WithLabelValues("ok").Inc()
	RowsAnalyzed.Add(float64(rows))
	AnomaliesFlagged.Add(float64(anomalies))
	AnalysisDuration.Observe(d.Seconds())
}
