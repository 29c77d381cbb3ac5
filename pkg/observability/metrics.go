package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatd_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Conversation turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_turns_total",
			Help: "Total number of conversation turns by outcome",
		},
		[]string{"outcome"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatd_turn_duration_seconds",
			Help:    "End-to-end conversation turn duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	// Retrieval metrics
	retrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_retrievals_total",
			Help: "Total number of retrieval attempts by status",
		},
		[]string{"status"},
	)

	retrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatd_retrieval_duration_seconds",
			Help:    "Embed plus vector search duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Completion metrics
	completionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_completions_total",
			Help: "Total number of completion calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	completionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatd_completion_duration_seconds",
			Help:    "Completion call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	completionTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatd_completion_tokens_total",
			Help: "Total tokens consumed by completion calls",
		},
		[]string{"provider", "kind"},
	)

	// Session metrics
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatd_active_sessions",
			Help: "Number of sessions currently held in the store",
		},
	)

	// Event stream metrics
	eventStreamConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatd_event_stream_connections",
			Help: "Number of open event stream connections",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers the Prometheus collectors. Safe to call more
// than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			turnsTotal,
			turnDuration,
			retrievalsTotal,
			retrievalDuration,
			completionsTotal,
			completionDuration,
			completionTokens,
			activeSessions,
			eventStreamConnections,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTurn records the outcome and duration of a conversation turn.
// Outcome is "succeeded" or "failed".
func RecordTurn(outcome string, duration time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRetrieval records a retrieval attempt. Status is "hit",
// "empty", or "unavailable".
func RecordRetrieval(status string, duration time.Duration) {
	retrievalsTotal.WithLabelValues(status).Inc()
	retrievalDuration.Observe(duration.Seconds())
}

// RecordCompletion records a completion call.
func RecordCompletion(provider, status string, duration time.Duration) {
	completionsTotal.WithLabelValues(provider, status).Inc()
	completionDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCompletionTokens records token usage for a completion call.
func RecordCompletionTokens(provider string, prompt, completion int) {
	completionTokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	completionTokens.WithLabelValues(provider, "completion").Add(float64(completion))
}

// SetActiveSessions sets the active sessions gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

// EventStreamOpened increments the open event stream gauge
func EventStreamOpened() {
	eventStreamConnections.Inc()
}

// EventStreamClosed decrements the open event stream gauge
func EventStreamClosed() {
	eventStreamConnections.Dec()
}
