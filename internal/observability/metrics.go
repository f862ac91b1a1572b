// Package observability provides Prometheus instrumentation for database
// queries and notification fan-out.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chirp_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FanoutLatency records how long a social mutation spends creating and
	// publishing its notification.
	FanoutLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chirp_notification_fanout_latency_seconds",
		Help:    "Notification fan-out latency in seconds by kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// CacheHits counts cache-aside hits and misses by key prefix.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chirp_cache_requests_total",
		Help: "Cache lookups by key prefix and outcome",
	}, []string{"prefix", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackFanout returns a function that records fan-out latency when called.
func TrackFanout(kind string) func() {
	start := time.Now()
	return func() {
		FanoutLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// RecordCacheHit records a cache hit or miss for the given key prefix.
func RecordCacheHit(prefix string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheHits.WithLabelValues(prefix, outcome).Inc()
}
