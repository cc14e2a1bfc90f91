package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the task pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry     *prometheus.Registry
	TasksTotal   *prometheus.CounterVec
	TaskDuration prometheus.Histogram
	RetriesTotal prometheus.Counter
	Workers      prometheus.Gauge
	QueueDepth   prometheus.Gauge
}

// NewMetrics constructs and registers all pipeline metrics on the given
// registry. When registry is nil a dedicated one is created.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	tasks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a11yscan_pipeline_tasks_total",
			Help: "Total number of tasks that reached a terminal state.",
		},
		[]string{"status"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "a11yscan_pipeline_task_duration_seconds",
			Help:    "Execution time of a single task attempt.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "a11yscan_pipeline_retries_total",
			Help: "Total number of task retry attempts scheduled.",
		},
	)
	workers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "a11yscan_pipeline_workers",
			Help: "Current number of live workers.",
		},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "a11yscan_pipeline_queue_depth",
			Help: "Current number of pending tasks.",
		},
	)

	registry.MustRegister(tasks, duration, retries, workers, queueDepth)

	return &Metrics{
		Registry:     registry,
		TasksTotal:   tasks,
		TaskDuration: duration,
		RetriesTotal: retries,
		Workers:      workers,
		QueueDepth:   queueDepth,
	}
}

// IncTask increments the terminal task counter for a status label.
func (m *Metrics) IncTask(status string) {
	if m == nil {
		return
	}
	m.TasksTotal.WithLabelValues(status).Inc()
}

// ObserveTaskDuration records one task attempt's execution time.
func (m *Metrics) ObserveTaskDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.TaskDuration.Observe(d.Seconds())
}

// IncRetry increments the retry counter.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// SetWorkers updates the live worker gauge.
func (m *Metrics) SetWorkers(n int) {
	if m == nil {
		return
	}
	m.Workers.Set(float64(n))
}

// SetQueueDepth updates the pending task gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
