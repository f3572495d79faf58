package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	// resolves counts Resolve calls by result: found, not_found, error
	resolves *prometheus.CounterVec
	// resolveDuration tracks Resolve latency including the content read
	resolveDuration prometheus.Histogram
	// lookups counts backend consultations by kind: folder, archive, index
	lookups *prometheus.CounterVec
	// indexBuilds counts package index builds by result
	indexBuilds *prometheus.CounterVec
	// indexEntries counts entries written into indexes
	indexEntries prometheus.Counter
	// unindexed is the number of packages currently served by scanning
	unindexed prometheus.Gauge
}

// newMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which keeps tests and library use free of global state.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		resolves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "h5seek_resolve_total",
			Help: "Total resolutions by result",
		}, []string{"result"}),
		resolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "h5seek_resolve_duration_seconds",
			Help:    "Resolution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
		}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "h5seek_backend_lookups_total",
			Help: "Total backend consultations by backend kind",
		}, []string{"kind"}),
		indexBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "h5seek_index_builds_total",
			Help: "Total package index builds by result",
		}, []string{"result"}),
		indexEntries: f.NewCounter(prometheus.CounterOpts{
			Name: "h5seek_index_entries_total",
			Help: "Total entries written into package indexes",
		}),
		unindexed: f.NewGauge(prometheus.GaugeOpts{
			Name: "h5seek_unindexed_packages",
			Help: "Packages currently resolved by scanning",
		}),
	}
}
