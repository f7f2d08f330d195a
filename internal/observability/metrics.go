package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for consumptive-use accounting.
type Metrics struct {
	UnitsProcessed     prometheus.Counter
	UnitFailures       *prometheus.CounterVec // labels: kind={no_data,input_validation,configuration_mismatch,capacity_violation,other}
	RecurrenceDuration prometheus.Histogram

	// Statement metrics.
	StatementsPublished prometheus.Counter
	Compliance          *prometheus.GaugeVec // labels: unit; 1 compliant, 0 not

	// Series cache metrics.
	SeriesCache *prometheus.CounterVec // labels: result={hit,miss}

	// OpenET metrics.
	DatasetFetches    *prometheus.CounterVec   // labels: variable={pr,ET}, outcome={fetched,current,error}
	OpenETAPIDuration *prometheus.HistogramVec // labels: operation={export,download}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		UnitsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lrp",
			Name:      "units_processed_total",
			Help:      "Total accounting units whose soil moisture balance was computed.",
		}),
		UnitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrp",
			Name:      "unit_failures_total",
			Help:      "Accounting units that failed, by error kind.",
		}, []string{"kind"}),
		RecurrenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lrp",
			Name:      "recurrence_duration_seconds",
			Help:      "Duration of building and running one unit's soil moisture balance.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		StatementsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lrp",
			Name:      "statements_published_total",
			Help:      "Total quarterly statements written to the statement topic.",
		}),
		Compliance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lrp",
			Name:      "unit_compliant",
			Help:      "1 when the unit's latest statement is within its maximum consumptive use, 0 otherwise.",
		}, []string{"unit"}),
		SeriesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrp",
			Name:      "series_cache_total",
			Help:      "Partition series cache lookups by result.",
		}, []string{"result"}),
		DatasetFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrp",
			Name:      "dataset_fetches_total",
			Help:      "OpenET dataset refreshes by variable and outcome.",
		}, []string{"variable", "outcome"}),
		OpenETAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lrp",
			Name:      "openet_api_duration_seconds",
			Help:      "OpenET request duration in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
	}

	prometheus.MustRegister(
		m.UnitsProcessed,
		m.UnitFailures,
		m.RecurrenceDuration,
		m.StatementsPublished,
		m.Compliance,
		m.SeriesCache,
		m.DatasetFetches,
		m.OpenETAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		UnitsProcessed:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lrp", Name: "units_processed_total"}),
		UnitFailures:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lrp", Name: "unit_failures_total"}, []string{"kind"}),
		RecurrenceDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "lrp", Name: "recurrence_duration_seconds"}),
		StatementsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "lrp", Name: "statements_published_total"}),
		Compliance:          prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "lrp", Name: "unit_compliant"}, []string{"unit"}),
		SeriesCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lrp", Name: "series_cache_total"}, []string{"result"}),
		DatasetFetches:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "lrp", Name: "dataset_fetches_total"}, []string{"variable", "outcome"}),
		OpenETAPIDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "lrp", Name: "openet_api_duration_seconds"}, []string{"operation"}),
	}
}
