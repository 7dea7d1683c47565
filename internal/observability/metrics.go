// Package observability exposes Prometheus metrics for the HTTP surface and the
// record gauges refreshed by background jobs.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/reporting"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	records         *prometheus.GaugeVec
	statuses        *prometheus.GaugeVec
	benefits        prometheus.Gauge
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "caseledger_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caseledger_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	records := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "caseledger_records",
		Help: "Records per office and category at the last snapshot.",
	}, []string{"office", "category"})
	statuses := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "caseledger_records_by_status",
		Help: "Records per category and processing status at the last snapshot.",
	}, []string{"category", "status"})
	benefits := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "caseledger_dependent_benefits_total",
		Help: "Sum of the last grant paid to every dependent at the last snapshot.",
	})
	registry.MustRegister(requests, duration, records, statuses, benefits)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		records:         records,
		statuses:        statuses,
		benefits:        benefits,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSummary replaces the record gauges with the figures of an unscoped summary.
func (m *Metrics) ObserveSummary(s reporting.Summary) {
	if m == nil {
		return
	}
	m.records.Reset()
	for _, stat := range s.OfficeBreakdown {
		m.records.WithLabelValues(stat.Office, string(access.CategoryFallen)).Set(float64(stat.Fallen))
		m.records.WithLabelValues(stat.Office, string(access.CategoryDisability)).Set(float64(stat.Disability))
		m.records.WithLabelValues(stat.Office, string(access.CategoryDependent)).Set(float64(stat.Dependents))
	}
	m.statuses.Reset()
	for cat, histogram := range s.StatusHistogram {
		for status, n := range histogram {
			m.statuses.WithLabelValues(string(cat), string(status)).Set(float64(n))
		}
	}
	m.benefits.Set(s.TotalBenefits.InexactFloat64())
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
