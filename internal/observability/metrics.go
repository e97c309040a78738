package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_verify"

// Metrics holds the Prometheus counters, histograms, and gauges for verification runs.
type Metrics struct {
	TasksDispatched prometheus.Counter
	TasksCompleted  prometheus.Counter
	TasksSkipped    *prometheus.CounterVec // labels: reason={data_unavailable,input_shape,configuration,sink,panic,error}
	RowsWritten     prometheus.Counter
	RunActive       prometheus.Gauge

	TaskDuration prometheus.Histogram

	// UndefinedValues counts NaN metric values emitted in rows.
	UndefinedValues *prometheus.CounterVec // labels: metric

	// Target grid cache.
	GridCache *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		TasksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_dispatched_total",
			Help:      "Tasks handed to the worker pool.",
		}),
		TasksCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks that produced an output row.",
		}),
		TasksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_skipped_total",
			Help:      "Tasks skipped by failure reason.",
		}, []string{"reason"}),
		RowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows accepted by the output sink.",
		}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a verification run is in progress, 0 otherwise.",
		}),
		TaskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of one task from field load to row.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		UndefinedValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undefined_values_total",
			Help:      "NaN metric values written, by metric name.",
		}, []string{"metric"}),
		GridCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cache_total",
			Help:      "Target grid cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.TasksDispatched,
		m.TasksCompleted,
		m.TasksSkipped,
		m.RowsWritten,
		m.RunActive,
		m.TaskDuration,
		m.UndefinedValues,
		m.GridCache,
	}
}

// NewMetrics creates and registers all verification metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
