// Package metrics declares the Prometheus collectors the pipeline
// increments. They are registered on the default registry and served by
// the metrics listener in main.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion metrics
var (
	IngestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipline_ingests_total",
			Help: "Total ingestion attempts by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipline_ingest_duration_seconds",
			Help:    "End-to-end ingestion duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	VariantsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipline_variants_stored_total",
			Help: "Total video variants committed to storage",
		},
	)

	IconUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipline_icon_uploads_total",
			Help: "Total streamer icon uploads by outcome",
		},
		[]string{"outcome"},
	)
)

// Purge metrics
var (
	PurgeRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipline_purge_runs_total",
			Help: "Total purge invocations",
		},
	)

	PurgeDeletedObjects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipline_purge_deleted_objects_total",
			Help: "Object versions and live keys removed by purges",
		},
	)

	PurgeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipline_purge_errors_total",
			Help: "Failed delete operations across purges",
		},
	)
)
