package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts tracks fetch attempts per source and outcome
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_fetch_attempts_total",
			Help: "Total number of fetch attempts",
		},
		[]string{"source", "outcome"},
	)

	// FetchDuration tracks fetch latency per source
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trending_fetch_duration_seconds",
			Help:    "Fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// RetryQueueSize tracks the number of sources waiting for a retry
	RetryQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trending_retry_queue_size",
			Help: "Number of sources with an outstanding retry",
		},
	)

	// ItemsStored tracks items written per source
	ItemsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_items_stored_total",
			Help: "Total number of items stored",
		},
		[]string{"source"},
	)

	// CycleDuration tracks full collection cycle duration
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trending_cycle_duration_seconds",
			Help:    "Collection cycle duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// NotificationsPublished tracks published notifications per type and outcome
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trending_notifications_published_total",
			Help: "Total number of notifications published",
		},
		[]string{"type", "outcome"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trending_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
