// Package metrics provides Prometheus counters for extraction runs.
// Metrics are registered on the default registry; exposure (or not) is
// the host's concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts API requests by outcome ("success",
	// "retryable", "fatal").
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daktela_api_requests_total",
			Help: "Total Daktela API requests by outcome",
		},
		[]string{"outcome"},
	)

	// APIRetries counts retry attempts after transient failures.
	APIRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "daktela_api_retries_total",
			Help: "Total retried Daktela API requests",
		},
	)

	// RowsEmitted counts normalized rows produced per table.
	RowsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daktela_rows_emitted_total",
			Help: "Total normalized rows emitted per table",
		},
		[]string{"table"},
	)

	// TablesExtracted counts finished tables by result ("written",
	// "empty", "skipped").
	TablesExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "daktela_tables_extracted_total",
			Help: "Total tables processed by result",
		},
		[]string{"result"},
	)
)
