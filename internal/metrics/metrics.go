// Package metrics provides Prometheus metrics for the editor host.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	reg *prometheus.Registry

	CommitsTotal         prometheus.Counter
	CompositionsTotal    prometheus.Counter
	FileOperationsTotal  *prometheus.CounterVec
	FrontmatterFallbacks prometheus.Counter
	ExternalChangesTotal prometheus.Counter
	DocumentWords        prometheus.Gauge
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	SSEClientsConnected  prometheus.Gauge
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		CommitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vertext_commits_total",
			Help: "Total number of surface commits into the canonical content",
		}),
		CompositionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vertext_compositions_total",
			Help: "Total number of finished IME composition sessions",
		}),
		FileOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vertext_file_operations_total",
			Help: "Total number of open and save operations",
		}, []string{"operation", "status"}),
		FrontmatterFallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "vertext_frontmatter_fallbacks_total",
			Help: "Total number of malformed frontmatter blocks read as plain body",
		}),
		ExternalChangesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "vertext_external_changes_total",
			Help: "Total number of on-disk edits detected for the open document",
		}),
		DocumentWords: f.NewGauge(prometheus.GaugeOpts{
			Name: "vertext_document_words",
			Help: "Word count of the active document",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vertext_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vertext_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		SSEClientsConnected: f.NewGauge(prometheus.GaugeOpts{
			Name: "vertext_sse_clients_connected",
			Help: "Number of connected event stream clients",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// RecordCommit counts one commit and publishes the resulting word count.
func (m *Metrics) RecordCommit(words int) {
	if m == nil {
		return
	}
	m.CommitsTotal.Inc()
	m.DocumentWords.Set(float64(words))
}

// RecordComposition counts a finished composition session.
func (m *Metrics) RecordComposition() {
	if m == nil {
		return
	}
	m.CompositionsTotal.Inc()
}

// RecordFileOperation counts an open or save with its outcome.
func (m *Metrics) RecordFileOperation(operation, status string) {
	if m == nil {
		return
	}
	m.FileOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordFrontmatterFallback counts a malformed frontmatter block.
func (m *Metrics) RecordFrontmatterFallback() {
	if m == nil {
		return
	}
	m.FrontmatterFallbacks.Inc()
}

// RecordExternalChange counts an on-disk edit of the open document.
func (m *Metrics) RecordExternalChange() {
	if m == nil {
		return
	}
	m.ExternalChangesTotal.Inc()
}

// SetWords publishes the word count of a freshly loaded document.
func (m *Metrics) SetWords(words int) {
	if m == nil {
		return
	}
	m.DocumentWords.Set(float64(words))
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// SSEClientAdded tracks a connected stream client; call the returned func on
// disconnect.
func (m *Metrics) SSEClientAdded() func() {
	if m == nil {
		return func() {}
	}
	m.SSEClientsConnected.Inc()
	return m.SSEClientsConnected.Dec
}
