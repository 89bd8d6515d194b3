package metrics

import "github.com/prometheus/client_golang/prometheus"

// Engine Prometheus metrics.
var (
	ReconcilePassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "reconcile_passes_total",
			Help:      "Total annotation reconciliation passes",
		},
	)

	SearchPagesScannedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "search_pages_scanned_total",
			Help:      "Total document pages scanned by full-text search",
		},
	)

	LayoutPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "layout_passes_total",
			Help:      "Total overlay layout passes",
		},
	)

	LayoutScootchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "layout_scootches_total",
			Help:      "Total tab collision scootches during layout",
		},
	)

	UnreadCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lectern",
			Name:      "unread_cache_total",
			Help:      "Unread count cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers Prometheus engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ReconcilePassesTotal)
	prometheus.MustRegister(SearchPagesScannedTotal)
	prometheus.MustRegister(LayoutPassesTotal)
	prometheus.MustRegister(LayoutScootchesTotal)
	prometheus.MustRegister(UnreadCacheTotal)
	engineMetricsRegistered = true
}
