package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/smartlearn/internal/learning"
	"github.com/dunamismax/smartlearn/internal/queue"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the API process registry. It also observes image
// normalization and progress enqueues, which happen below the HTTP layer.
type Metrics struct {
	registry            *prometheus.Registry
	requestTotal        *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	rateLimitRejected   *prometheus.CounterVec
	queueEnqueued       *prometheus.CounterVec
	normalizations      *prometheus.CounterVec
	normalizationQual   prometheus.Histogram
	normalizationOutput prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlearn_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smartlearn_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlearn_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		queueEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlearn_queue_tasks_enqueued_total",
			Help: "Total progress recalculation tasks enqueued.",
		}, []string{"queue", "reason"}),
		normalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartlearn_image_normalizations_total",
			Help: "Profile picture normalizations by outcome.",
		}, []string{"outcome"}),
		normalizationQual: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartlearn_image_normalization_quality",
			Help:    "JPEG quality of normalized profile pictures.",
			Buckets: []float64{60, 65, 70, 75, 80, 85},
		}),
		normalizationOutput: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartlearn_image_normalization_output_bytes",
			Help:    "Size of stored profile pictures in bytes.",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.queueEnqueued,
		m.normalizations,
		m.normalizationQual,
		m.normalizationOutput,
	)
	return m
}

// ObserveNormalization records one normalizer outcome. Passthrough results
// carry no quality.
func (m *Metrics) ObserveNormalization(outcome string, quality, size int) {
	m.normalizations.WithLabelValues(outcome).Inc()
	m.normalizationOutput.Observe(float64(size))
	if quality > 0 {
		m.normalizationQual.Observe(float64(quality))
	}
}

// CountEnqueues wraps a progress enqueuer so successful enqueues are counted.
func (m *Metrics) CountEnqueues(next learning.ProgressEnqueuer) learning.ProgressEnqueuer {
	return countingEnqueuer{next: next, counter: m.queueEnqueued}
}

type countingEnqueuer struct {
	next    learning.ProgressEnqueuer
	counter *prometheus.CounterVec
}

func (c countingEnqueuer) EnqueueRecalculateProgress(ctx context.Context, payload queue.RecalculateProgressPayload) (*asynq.TaskInfo, error) {
	info, err := c.next.EnqueueRecalculateProgress(ctx, payload)
	if err != nil {
		return nil, err
	}
	c.counter.WithLabelValues(info.Queue, payload.Reason).Inc()
	return info, nil
}

func (m *Metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// Segments following these collections are identifiers.
var idCollections = map[string]bool{
	"subjects":    true,
	"assignments": true,
	"submissions": true,
	"materials":   true,
	"users":       true,
}

var fixedSegments = map[string]bool{
	"popular": true,
}

// routeLabel collapses identifiers so label cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case path == "/healthz", path == "/metrics":
		return path
	case !strings.HasPrefix(path, "/v1/"):
		return "other"
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if idCollections[parts[i-1]] && !fixedSegments[parts[i]] {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
