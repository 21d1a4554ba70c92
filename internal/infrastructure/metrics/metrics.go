package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scribe-server metrics
var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "model"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	TokensPromptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "tokens_prompt_total",
			Help:      "Total prompt tokens consumed",
		},
		[]string{"model", "provider"},
	)

	TokensCompletionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "tokens_completion_total",
			Help:      "Total completion tokens generated",
		},
		[]string{"model", "provider"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "provider_errors_total",
			Help:      "Total LLM provider call failures",
		},
		[]string{"provider", "error_type"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "llm_duration_seconds",
			Help:      "LLM inference duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "provider"},
	)

	DocstoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "docstore_requests_total",
			Help:      "Total document-store API requests by outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	DocstoreRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "docstore_retries_total",
			Help:      "Total document-store retries by trigger",
		},
		[]string{"endpoint", "trigger"},
	)

	RecordsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "records_created_total",
			Help:      "Total records persisted to the document store",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scribe",
			Subsystem: "server",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the advisory rate limiter",
		},
		[]string{"endpoint"},
	)
)

// RecordRequest records an HTTP request with all relevant labels
func RecordRequest(method, endpoint, status, model string, durationSec float64) {
	if model == "" {
		model = "unknown"
	}
	RequestsTotal.WithLabelValues(method, endpoint, status, model).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordTokens records token usage for a completion request
func RecordTokens(model, provider string, promptTokens, completionTokens int) {
	TokensPromptTotal.WithLabelValues(model, provider).Add(float64(promptTokens))
	TokensCompletionTotal.WithLabelValues(model, provider).Add(float64(completionTokens))
}

// RecordProviderError records an LLM provider failure
func RecordProviderError(provider, errorType string) {
	ProviderErrorsTotal.WithLabelValues(provider, errorType).Inc()
}

// RecordDocstoreRequest records the outcome of one document-store call
func RecordDocstoreRequest(endpoint, outcome string) {
	DocstoreRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordDocstoreRetry records a retry with its trigger (rate_limit, timeout, server_error)
func RecordDocstoreRetry(endpoint, trigger string) {
	DocstoreRetriesTotal.WithLabelValues(endpoint, trigger).Inc()
}
