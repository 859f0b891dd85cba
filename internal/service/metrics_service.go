package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the portal.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	assessments     *prometheus.CounterVec
	scorerLatency   *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	exports         *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status", "audience"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status", "audience"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	assessments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_assessments_total",
		Help: "Eligibility assessments by scoring path and verdict",
	}, []string{"source", "status"})

	scorerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eligibility_scorer_duration_seconds",
		Help:    "Duration of remote scorer calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"outcome"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification dispatch attempts by category and outcome",
	}, []string{"category", "outcome"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "application_transitions_total",
		Help: "Workflow status transitions by target status",
	}, []string{"status"})

	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_jobs_total",
		Help: "Export jobs by format and outcome",
	}, []string{"format", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		assessments, scorerLatency, notifications, transitions, exports, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		assessments:     assessments,
		scorerLatency:   scorerLatency,
		notifications:   notifications,
		transitions:     transitions,
		exports:         exports,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// HTTPObservation is one served request. Audience is the session namespace
// that made it, or "anonymous".
type HTTPObservation struct {
	Method   string
	Route    string
	Status   int
	Audience string
	Duration time.Duration
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(obs HTTPObservation) {
	if m == nil {
		return
	}
	labels := []string{obs.Method, obs.Route, strconv.Itoa(obs.Status), obs.Audience}
	m.requestDuration.WithLabelValues(labels...).Observe(obs.Duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordAssessment counts one eligibility assessment.
func (m *MetricsService) RecordAssessment(source, status string) {
	if m == nil {
		return
	}
	m.assessments.WithLabelValues(source, status).Inc()
}

// ObserveScorerCall records the latency of a remote scorer call.
func (m *MetricsService) ObserveScorerCall(ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.scorerLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordNotification counts one dispatch attempt.
func (m *MetricsService) RecordNotification(category string, sent bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !sent {
		outcome = "failed"
	}
	m.notifications.WithLabelValues(category, outcome).Inc()
}

// RecordTransition counts a workflow status change.
func (m *MetricsService) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordExport counts a finished or failed export job.
func (m *MetricsService) RecordExport(format string, ok bool) {
	if m == nil {
		return
	}
	outcome := "finished"
	if !ok {
		outcome = "failed"
	}
	m.exports.WithLabelValues(format, outcome).Inc()
}
