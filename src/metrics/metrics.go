package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts API requests by route pattern, method and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolcosts_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration tracks request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poolcosts_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolcosts_sync_runs_total",
			Help: "Paperless sync runs by result",
		},
		[]string{"result"},
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poolcosts_sync_duration_seconds",
			Help:    "Duration of a complete Paperless sync run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// SyncDocumentsTotal counts documents by outcome (inserted, updated, skipped).
	SyncDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolcosts_sync_documents_total",
			Help: "Documents processed by sync runs",
		},
		[]string{"outcome"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolcosts_extractions_total",
			Help: "Field extractions by review decision",
		},
		[]string{"needs_review"},
	)

	ExtractionConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poolcosts_extraction_confidence",
			Help:    "Confidence reported by the extraction engine",
			Buckets: []float64{0.15, 0.25, 0.35, 0.45, 0.55, 0.64, 0.75, 0.85, 0.95, 0.99},
		},
	)

	// TraceSchemaMismatches counts debug traces that failed schema validation.
	TraceSchemaMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "poolcosts_trace_schema_mismatches_total",
			Help: "Debug traces that did not match the trace schema",
		},
	)
)

// ObserveExtraction records one engine result.
func ObserveExtraction(confidence float64, needsReview bool) {
	label := "false"
	if needsReview {
		label = "true"
	}
	ExtractionsTotal.WithLabelValues(label).Inc()
	ExtractionConfidence.Observe(confidence)
}
