// Package metrics exposes Prometheus instruments for store operations
// and the listener fan-out, registered against the default registry and
// served by cmd/qvarnd over the metrics listen address.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations counts store operations by resource type and outcome.
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qvarnd",
		Name:      "store_operations_total",
		Help:      "Total store operations by resource type, operation, and outcome.",
	}, []string{"resource_type", "operation", "outcome"})

	// OperationDuration records wall-clock latency of store operations.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "qvarnd",
		Name:      "store_operation_duration_seconds",
		Help:      "Store operation latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource_type", "operation"})

	// ListenersNotified counts listener fan-out selections per change type.
	ListenersNotified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qvarnd",
		Name:      "listeners_notified_total",
		Help:      "Total listeners selected for fan-out, by resource type and change type.",
	}, []string{"resource_type", "change_type"})

	// HTTPRequests counts handled requests by method and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qvarnd",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method and status code.",
	}, []string{"method", "status"})
)

// Outcome labels for Operations.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
