// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ExtractionDuration tracks calls to the structured-extraction service.
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Structured extraction call duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// PipelineRunsTotal tracks ingestion pipeline runs by intake source and outcome.
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total ingestion pipeline runs",
		},
		[]string{"source", "outcome"},
	)

	// ReadAttemptsTotal tracks file read attempts made by the watch source.
	ReadAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_read_attempts_total",
			Help: "File read attempts by the directory watch source",
		},
		[]string{"result"},
	)

	// WatchEventsTotal tracks file-system events seen by the watch source.
	WatchEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watch_events_total",
			Help: "File-system events observed in the uploads directory",
		},
		[]string{"action"},
	)

	// WatchQueueDepth tracks events waiting for a worker.
	WatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_queue_depth",
			Help: "Number of queued watch events",
		},
	)

	// DatasetsWrittenTotal tracks datasets persisted to storage.
	DatasetsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datasets_written_total",
			Help: "Total datasets written to storage",
		},
	)

	// NotificationsTotal tracks dataset events published to NATS.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_notifications_total",
			Help: "Dataset events published to the message bus",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordExtraction records metrics for one extraction call.
func RecordExtraction(provider, model, status string, duration float64, tokensIn, tokensOut int) {
	ExtractionDuration.WithLabelValues(provider, status).Observe(duration)
	if model == "" {
		return
	}
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordPipelineRun records the terminal outcome of a pipeline run.
func RecordPipelineRun(source, outcome string) {
	PipelineRunsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordReadAttempt records one watch-source read attempt.
func RecordReadAttempt(result string) {
	ReadAttemptsTotal.WithLabelValues(result).Inc()
}
