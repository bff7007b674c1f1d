// Package telemetry provides logging setup and Prometheus collectors for the
// events API, the pipeline and the probes.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<EVS_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (the route template) as the path label so raw
// request URLs never reach label values.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics for the events API, labelled by method, route template and status.
//
// Example PromQL queries:
//   - Request rate:     rate(http_requests_total[5m])
//   - p99 per route:    histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Ingest metrics, recorded by POST /events/batch.
//
// EventsReceivedTotal counts every element of accepted batches; EventsInsertedTotal
// counts rows actually written (duplicates on (name, startdate) are skipped).
var (
	EventsReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_received_total",
			Help: "Total number of events received in ingest batches.",
		},
	)

	EventsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_inserted_total",
			Help: "Total number of events inserted into the events table.",
		},
	)

	IngestFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_ingest_failures_total",
			Help: "Total number of ingest batches that were rolled back.",
		},
	)
)

// Pipeline metrics, recorded by the collect/clean/push steps.
//
// PipelineRunsTotal has labels {step, result} where result is "success" or "error".
//
// Example PromQL queries:
//   - Failing steps:  sum by (step) (increase(pipeline_runs_total{result="error"}[1d]))
var (
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline step executions, by step and result.",
		},
		[]string{"step", "result"},
	)

	PipelineStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_step_duration_seconds",
			Help:    "Duration of a single pipeline step.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
		[]string{"step"},
	)

	EventsCleanedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_cleaned_added_total",
			Help: "Total number of new events appended to the cleaned snapshot.",
		},
	)
)

// UpstreamRequestsTotal counts requests made to cryptonomads.org by the pipeline
// client and the probes, labelled by operation and HTTP status ("error" when the
// request never produced a response).
var UpstreamRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Total number of requests sent to cryptonomads.org, by operation and status.",
	},
	[]string{"operation", "status"},
)

// DBOpenConnections tracks the number of open connections in the sql.DB pool.
// It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits when the database becomes unreachable, which happens once
// main closes the pool on shutdown.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
