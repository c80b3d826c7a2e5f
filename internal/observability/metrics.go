package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline and its adapters.
type Metrics struct {
	EventsFetched  prometheus.Counter
	EventsUpserted prometheus.Counter
	EntriesDropped prometheus.Counter
	IngestRunning  prometheus.Gauge
	IngestDuration prometheus.Histogram

	// Feed adapter metrics.
	FeedFetches *prometheus.CounterVec // labels: source, outcome={ok,error}

	// Gazetteer metrics.
	GeoResolved      prometheus.Counter
	GeoMissed        prometheus.Counter
	GazetteerLookups *prometheus.CounterVec // labels: result={exact,fuzzy,miss}

	// Sink metrics.
	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsFetched,
		m.EventsUpserted,
		m.EntriesDropped,
		m.IngestRunning,
		m.IngestDuration,
		m.FeedFetches,
		m.GeoResolved,
		m.GeoMissed,
		m.GazetteerLookups,
		m.EventsPublished,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "events_fetched_total",
			Help:      "Total feed entries fetched across all sources.",
		}),
		EventsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "events_upserted_total",
			Help:      "Total events written to the store.",
		}),
		EntriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "entries_dropped_total",
			Help:      "Feed entries dropped for invalid timestamps.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "osint_monitor",
			Name:      "ingest_running",
			Help:      "1 while an ingest pass is active.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "osint_monitor",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-resolve-score-upsert pass.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "feed_fetches_total",
			Help:      "Feed fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		GeoResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "geo_resolved_total",
			Help:      "Events that resolved to a gazetteer place.",
		}),
		GeoMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "geo_missed_total",
			Help:      "Events with no resolvable place candidate.",
		}),
		GazetteerLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "gazetteer_lookups_total",
			Help:      "Gazetteer candidate lookups by result.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "osint_monitor",
			Name:      "events_published_total",
			Help:      "Enriched events published to the Kafka sink topic.",
		}),
	}
}
