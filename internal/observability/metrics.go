// Package observability provides Prometheus metrics for the fusion
// engine, using a promauto/sync.Once singleton.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all aegis Prometheus metrics.
type Metrics struct {
	TickDuration    prometheus.Histogram
	TicksTotal      *prometheus.CounterVec
	TracksByStatus  *prometheus.GaugeVec
	AlertTierTotal  *prometheus.CounterVec
	DroppedStale    *prometheus.CounterVec
	AdapterFailures *prometheus.CounterVec
	RetentionDeleted *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// GetMetrics returns the global metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = initializeMetrics()
	})
	return globalMetrics
}

func initializeMetrics() *Metrics {
	m := &Metrics{}

	m.TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "aegis",
			Subsystem: "fusion",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one fusion tick (poll + align + fuse + emit).",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	m.TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "fusion",
			Name:      "ticks_total",
			Help:      "Total fusion ticks, by outcome.",
		},
		[]string{"outcome"}, // emitted | empty | consent_rejected
	)

	m.TracksByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aegis",
			Subsystem: "fusion",
			Name:      "tracks",
			Help:      "Number of live tracks by lifecycle status.",
		},
		[]string{"status"},
	)

	m.AlertTierTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "fusion",
			Name:      "alert_tier_ticks_total",
			Help:      "Ticks classified at each alert tier.",
		},
		[]string{"tier"},
	)

	m.DroppedStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "syncbuf",
			Name:      "dropped_stale_total",
			Help:      "Measurements dropped as stale by the synchronization buffer.",
		},
		[]string{"modality"},
	)

	m.AdapterFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "ingestion",
			Name:      "adapter_failures_total",
			Help:      "Adapter fetch or ingestion failures, downgraded to an empty fetch.",
		},
		[]string{"modality"},
	)

	m.RetentionDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aegis",
			Subsystem: "retention",
			Name:      "deleted_total",
			Help:      "Entries deleted by a retention pruning pass.",
		},
		[]string{"kind"}, // measurements | logs
	)

	return m
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTick records one tick's duration and outcome.
func RecordTick(outcome string, d time.Duration) {
	m := GetMetrics()
	m.TicksTotal.WithLabelValues(outcome).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// RecordTrackCounts sets the live-track gauge per status.
func RecordTrackCounts(counts map[string]int) {
	m := GetMetrics()
	for status, n := range counts {
		m.TracksByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordAlertTier increments the per-tier tick counter.
func RecordAlertTier(tier string) {
	GetMetrics().AlertTierTotal.WithLabelValues(tier).Inc()
}

// RecordDroppedStale increments the per-modality stale-drop counter.
func RecordDroppedStale(modality string, n int) {
	if n <= 0 {
		return
	}
	GetMetrics().DroppedStale.WithLabelValues(modality).Add(float64(n))
}

// RecordAdapterFailure increments the per-modality adapter failure counter.
func RecordAdapterFailure(modality string) {
	GetMetrics().AdapterFailures.WithLabelValues(modality).Inc()
}

// RecordRetention records a retention pruning pass's deleted counts.
func RecordRetention(measurements, logs int) {
	m := GetMetrics()
	m.RetentionDeleted.WithLabelValues("measurements").Add(float64(measurements))
	m.RetentionDeleted.WithLabelValues("logs").Add(float64(logs))
}
