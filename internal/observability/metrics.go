package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for inventory generation.
type Metrics struct {
	GeneratorRunning prometheus.Gauge

	// Fetch metrics.
	TasksFetched  prometheus.Counter
	FetchErrors   prometheus.Counter
	FetchDuration prometheus.Histogram
	IndexSource   *prometheus.CounterVec // labels: source={azure,aws,google}, outcome={hit,miss,error}

	// Batch metrics.
	Batches       *prometheus.CounterVec // labels: outcome={written,failed}
	BatchDuration prometheus.Histogram
	RowsWritten   prometheus.Counter

	// Reference metrics.
	ReferenceCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all generator metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		GeneratorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hrrr_inventory",
			Name:      "generator_running",
			Help:      "1 while a bulk generation run is active, 0 otherwise.",
		}),
		TasksFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_inventory",
			Name:      "tasks_fetched_total",
			Help:      "Per-forecast-hour index fetches that succeeded.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_inventory",
			Name:      "fetch_errors_total",
			Help:      "Per-forecast-hour index fetches that failed.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hrrr_inventory",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of a single index fetch including parsing.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		IndexSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrrr_inventory",
			Name:      "index_source_requests_total",
			Help:      "Index requests by source and outcome.",
		}, []string{"source", "outcome"}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrrr_inventory",
			Name:      "batches_total",
			Help:      "Inventory groupings processed by outcome.",
		}, []string{"outcome"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hrrr_inventory",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one grouping from fetch to write.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hrrr_inventory",
			Name:      "rows_written_total",
			Help:      "Inventory rows written to the store.",
		}),
		ReferenceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hrrr_inventory",
			Name:      "reference_cache_total",
			Help:      "Reference table cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.GeneratorRunning,
		m.TasksFetched,
		m.FetchErrors,
		m.FetchDuration,
		m.IndexSource,
		m.Batches,
		m.BatchDuration,
		m.RowsWritten,
		m.ReferenceCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		GeneratorRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hrrr_inventory", Name: "generator_running"}),
		TasksFetched:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_inventory", Name: "tasks_fetched_total"}),
		FetchErrors:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_inventory", Name: "fetch_errors_total"}),
		FetchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hrrr_inventory", Name: "fetch_duration_seconds"}),
		IndexSource:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hrrr_inventory", Name: "index_source_requests_total"}, []string{"source", "outcome"}),
		Batches:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hrrr_inventory", Name: "batches_total"}, []string{"outcome"}),
		BatchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hrrr_inventory", Name: "batch_duration_seconds"}),
		RowsWritten:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hrrr_inventory", Name: "rows_written_total"}),
		ReferenceCache:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hrrr_inventory", Name: "reference_cache_total"}, []string{"result"}),
	}
}
