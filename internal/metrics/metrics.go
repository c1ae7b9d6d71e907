// Package metrics defines the Prometheus collectors for the ingestion
// pipeline and the HTTP surface. All collectors are registered with the
// default registry using promauto; expose them by mounting
// promhttp.Handler().
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meagle_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meagle_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "meagle_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Ingestion pipeline metrics
var (
	IngestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meagle_ingestions_total",
			Help: "Total number of asset uploads by media kind",
		},
		[]string{"kind"},
	)

	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meagle_extractions_total",
			Help: "Metadata/preview extraction runs by kind and outcome",
		},
		[]string{"kind", "status"}, // status: success, degraded
	)

	PreviewGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meagle_preview_generations_total",
			Help: "Preview JPEGs written, by trigger",
		},
		[]string{"trigger"}, // trigger: ingest, lazy
	)

	PreviewGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meagle_preview_generation_duration_seconds",
			Help:    "Time spent encoding and persisting preview JPEGs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

// Delivery metrics
var (
	RangeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meagle_range_requests_total",
			Help: "Blob delivery requests by outcome",
		},
		[]string{"outcome"}, // outcome: full, partial, invalid_range, not_found
	)

	BlobBytesServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meagle_blob_bytes_served_total",
			Help: "Total blob bytes written to clients",
		},
	)
)
