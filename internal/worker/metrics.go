package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	tasksTotal         *prometheus.CounterVec
	taskDuration       *prometheus.HistogramVec
	activeTasks        prometheus.Gauge
	progressPercentage prometheus.Histogram
	completionsTotal   prometheus.Counter
	webhookFailures    *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlearn_worker_tasks_total",
			Help: "Total progress recalculation tasks by trigger and outcome.",
		}, []string{"reason", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartlearn_worker_task_duration_seconds",
			Help:    "Processing duration for each recalculation task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"reason", "outcome"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartlearn_worker_active_tasks",
			Help: "Current number of tasks being processed.",
		}),
		progressPercentage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartlearn_worker_progress_percentage",
			Help:    "Course progress percentages produced by recalculation.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		completionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartlearn_worker_course_completions_total",
			Help: "Total courses that crossed into completion.",
		}),
		webhookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlearn_worker_webhook_failures_total",
			Help: "Webhook deliveries that failed after all retries.",
		}, []string{"event"}),
	}

	registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.activeTasks,
		m.progressPercentage,
		m.completionsTotal,
		m.webhookFailures,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
