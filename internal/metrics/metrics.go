// Package metrics defines the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	LimitDecisions      *prometheus.CounterVec
	BillingEvents       *prometheus.CounterVec
	DocumentRollbacks   *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		LimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_limit_decisions_total",
				Help: "Usage gate decisions by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),
		BillingEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_billing_events_total",
				Help: "Billing provider events by type and outcome",
			},
			[]string{"type", "outcome"},
		),
		DocumentRollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_document_rollbacks_total",
				Help: "Upload compensations after indexing failures",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfchat_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pdfchat_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.LimitDecisions,
		m.BillingEvents,
		m.DocumentRollbacks,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)
	return m
}

// LimitDecision records one gate verdict.
func (m *Metrics) LimitDecision(resource, outcome string) {
	if m == nil {
		return
	}
	m.LimitDecisions.WithLabelValues(resource, outcome).Inc()
}

// BillingEvent records how a billing event was handled.
func (m *Metrics) BillingEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.BillingEvents.WithLabelValues(eventType, outcome).Inc()
}

// DocumentRollback records an upload compensation; status is "ok" or "failed".
func (m *Metrics) DocumentRollback(status string) {
	if m == nil {
		return
	}
	m.DocumentRollbacks.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments requests, labelled by mux route template so ids do
// not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
