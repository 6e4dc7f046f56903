package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersProcessed tracks terminal pipeline outcomes
	OrdersProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_orders_processed_total",
			Help: "Total number of orders reaching a terminal pipeline state",
		},
		[]string{"result"},
	)

	// RetriesScheduled tracks deferred re-deliveries per retry lane
	RetriesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_retries_scheduled_total",
			Help: "Total number of retries scheduled onto deferred lanes",
		},
		[]string{"lane"},
	)

	// DeadLettered tracks orders diverted to the dead-letter sink
	DeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_dead_lettered_total",
			Help: "Total number of orders recorded in the dead-letter sink",
		},
		[]string{"failure_type", "category"},
	)

	// Reprocessed tracks dead-letter reprocessing outcomes
	Reprocessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_dlq_reprocessed_total",
			Help: "Total number of dead-letter reprocessing attempts",
		},
		[]string{"outcome"},
	)

	// AggregationUpdates tracks per-key statistic updates
	AggregationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_aggregation_updates_total",
			Help: "Total number of aggregation updates applied",
		},
		[]string{"table"},
	)

	// LateEventsDropped tracks events discarded because their window closed
	LateEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_late_events_dropped_total",
			Help: "Total number of events dropped for arriving after window close",
		},
	)

	// WindowsEvicted tracks expired windows removed by the evictor
	WindowsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_windows_evicted_total",
			Help: "Total number of windows evicted after retention",
		},
	)

	// ProcessingLatency tracks end-to-end handling latency per delivery
	ProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderflow_processing_latency_seconds",
			Help:    "Order processing latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DLQPending tracks the current number of pending dead-letter records
	DLQPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderflow_dlq_pending",
			Help: "Current number of pending failed orders",
		},
	)
)
