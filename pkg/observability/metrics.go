// Package observability provides Prometheus metrics for the candle cache
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// SessionsTotal tracks cache sessions by outcome
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candlecache_sessions_total",
			Help: "Total number of cache sessions opened",
		},
		[]string{"status"}, // status: opened, lock_timeout, error
	)

	// LockWaitDuration measures time spent waiting for the cache lock
	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "candlecache_lock_wait_seconds",
			Help:    "Time spent waiting for the cache write lock",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
	)

	// PartitionOutcomes counts pairs by fetch classification
	PartitionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candlecache_partition_pairs_total",
			Help: "Pairs classified by the fetch partitioner",
		},
		[]string{"outcome"}, // outcome: full, delta, satisfied
	)

	// RowsMerged counts candle rows merged into the series table
	RowsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "candlecache_rows_merged_total",
			Help: "Total number of candle rows merged into the cache",
		},
	)

	// TableRows tracks the current size of the persisted series table
	TableRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "candlecache_table_rows",
			Help: "Number of rows in the persisted candle table",
		},
	)

	// SaveDuration measures persistence time per cache file
	SaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "candlecache_save_duration_seconds",
			Help:    "Time taken to persist a cache file",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"file"}, // file: data, meta
	)
)
