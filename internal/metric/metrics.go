// Package metric holds the Prometheus metrics of the form server.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formengine"

// Metrics records form activity. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	sessionsActive prometheus.Gauge
	sessionsTotal  *prometheus.CounterVec // by form
	edits          *prometheus.CounterVec // by form and result (ok/rejected)
	validations    *prometheus.CounterVec // by form and result (valid/invalid)
	submissions    *prometheus.CounterVec // by form and result (accepted/invalid/hook_failed)
	snapshots      *prometheus.CounterVec // by operation (save/restore) and result
	requests       *prometheus.HistogramVec
}

// New creates the metrics on a private registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of live form sessions",
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Total number of form sessions created",
		}, []string{"form"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fields",
			Name:      "edits_total",
			Help:      "Total number of field edits",
		}, []string{"form", "result"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pages",
			Name:      "validations_total",
			Help:      "Total number of page validations",
		}, []string{"form", "result"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forms",
			Name:      "submissions_total",
			Help:      "Total number of form submissions",
		}, []string{"form", "result"}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshots",
			Name:      "operations_total",
			Help:      "Total number of snapshot saves and restores",
		}, []string{"operation", "result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route", "method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsActive,
		m.sessionsTotal,
		m.edits,
		m.validations,
		m.submissions,
		m.snapshots,
		m.requests,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// SessionCreated counts a new session of form.
func (m *Metrics) SessionCreated(form string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(form).Inc()
}

// SetActiveSessions records the number of live sessions.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// RecordEdit counts a field edit.
func (m *Metrics) RecordEdit(form string, err error) {
	if m == nil {
		return
	}
	m.edits.WithLabelValues(form, result(err == nil, "ok", "rejected")).Inc()
}

// RecordValidation counts a page validation.
func (m *Metrics) RecordValidation(form string, valid bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(form, result(valid, "valid", "invalid")).Inc()
}

// RecordSubmission counts a submission attempt. Result is one of accepted,
// invalid or hook_failed.
func (m *Metrics) RecordSubmission(form, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(form, outcome).Inc()
}

// RecordSnapshot counts a snapshot operation.
func (m *Metrics) RecordSnapshot(operation string, err error) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(operation, result(err == nil, "ok", "error")).Inc()
}

// ObserveRequest records the duration of one HTTP request.
func (m *Metrics) ObserveRequest(route, method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, code).Observe(d.Seconds())
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
