package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "collabbridge"

// Metrics holds the bridge's Prometheus collectors, registered on their own
// registry so the daemon can expose them without inheriting the global one.
type Metrics struct {
	Registry *prometheus.Registry

	SyncsTotal           *prometheus.CounterVec
	SyncDurationSeconds  *prometheus.HistogramVec
	ConflictsDetected    prometheus.Counter
	ConflictsResolved    *prometheus.CounterVec
	TranslationCacheHits prometheus.Counter
	TranslationCacheMiss prometheus.Counter
	ActiveDocuments      prometheus.Gauge
}

// NewMetrics creates and registers the bridge metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		SyncsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "syncs_total",
				Help:      "Sync operations by direction and status",
			},
			[]string{"direction", "status"},
		),

		SyncDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "sync_duration_seconds",
				Help:      "Sync operation duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"direction"},
		),

		ConflictsDetected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "conflicts_detected_total",
				Help:      "Conflicts detected between the collaborative and LSP views",
			},
		),

		ConflictsResolved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "conflicts_resolved_total",
				Help:      "Conflicts resolved by strategy",
			},
			[]string{"strategy"},
		),

		TranslationCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "translation_cache_hits_total",
				Help:      "Translation cache hits",
			},
		),

		TranslationCacheMiss: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "translation_cache_misses_total",
				Help:      "Translation cache misses",
			},
		),

		ActiveDocuments: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_documents",
				Help:      "Documents with sync state",
			},
		),
	}
}
