package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "snpbench"

// Metrics aggregates recorded results into a private Prometheus registry.
// The registry is written out as a textfile once the run ends.
type Metrics struct {
	reg            *prometheus.Registry
	phases         *prometheus.HistogramVec
	indexes        *prometheus.HistogramVec
	queries        *prometheus.HistogramVec
	records        *prometheus.CounterVec
	rows           *prometheus.CounterVec
	mirrorFailures prometheus.Counter
}

// NewMetrics builds and registers the benchmark collectors.
func NewMetrics() *Metrics {
	buckets := prometheus.ExponentialBuckets(0.0005, 4, 12)
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		phases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of partition load phases.",
			Buckets:   buckets,
		}, []string{"method", "phase"}),
		indexes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "index_build_seconds",
			Help:      "Duration of index builds.",
			Buckets:   buckets,
		}, []string{"method", "index"}),
		queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "query_duration_seconds",
			Help:      "Latency of benchmark queries.",
			Buckets:   buckets,
		}, []string{"method", "query"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "results_recorded_total",
			Help:      "Results appended to the report file.",
		}, []string{"method"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_total",
			Help:      "Row counters reported by partition loads.",
		}, []string{"count"}),
		mirrorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "mirror_failures_total",
			Help:      "Results that could not be mirrored to the remote sink.",
		}),
	}
	m.reg.MustRegister(m.phases, m.indexes, m.queries, m.records, m.rows, m.mirrorFailures)
	return m
}

// Observe folds a computed result into the collectors. Zero durations mean
// "not measured" and are skipped.
func (m *Metrics) Observe(r *Result) {
	m.records.WithLabelValues(r.Method).Inc()
	for p, d := range r.elapsed {
		if d > 0 {
			m.phases.WithLabelValues(r.Method, phaseNames[p]).Observe(d.Seconds())
		}
	}
	for c, n := range r.counts {
		if n > 0 {
			m.rows.WithLabelValues(countNames[c]).Add(float64(n))
		}
	}
	for k, d := range r.indexes {
		if d > 0 {
			m.indexes.WithLabelValues(r.Method, indexNames[k]).Observe(d.Seconds())
		}
	}
	for k, d := range r.queries {
		if d > 0 {
			m.queries.WithLabelValues(r.Method, queryNames[k]).Observe(d.Seconds())
		}
	}
}

// MirrorFailed counts one failed mirror attempt.
func (m *Metrics) MirrorFailed() { m.mirrorFailures.Inc() }

// WriteFile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
