// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "prenos"

// Metrics holds every collector on its own registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	lineVerdicts       *prometheus.CounterVec
	transfersCommitted prometheus.Counter
	cancellations      *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	stockAdjustments   prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		lineVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_line_verdicts_total",
			Help:      "Evaluated transfer lines by operation, status and reject reason.",
		}, []string{"operation", "status", "reason"}),

		transfersCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_committed_total",
			Help:      "Transfers persisted by the commit engine.",
		}),

		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_cancellations_total",
			Help:      "Reversed transfer lines and transfers.",
		}, []string{"scope"}),

		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_conflicts_total",
			Help:      "Operations aborted by a lock or serialization conflict.",
		}, []string{"operation"}),

		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_operation_duration_seconds",
			Help:      "Duration of transfer engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),

		stockAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Manual stock ledger adjustments.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lineVerdicts,
		m.transfersCommitted,
		m.cancellations,
		m.conflicts,
		m.operationDuration,
		m.stockAdjustments,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// LineVerdict counts one evaluated line.
func (m *Metrics) LineVerdict(operation, status, reason string) {
	if m == nil {
		return
	}
	m.lineVerdicts.WithLabelValues(operation, status, reason).Inc()
}

// TransferCommitted counts one persisted transfer.
func (m *Metrics) TransferCommitted() {
	if m == nil {
		return
	}
	m.transfersCommitted.Inc()
}

// Cancelled counts reversals; scope is "line" or "transfer".
func (m *Metrics) Cancelled(scope string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cancellations.WithLabelValues(scope).Add(float64(n))
}

// Conflict counts an operation aborted by a concurrency conflict.
func (m *Metrics) Conflict(operation string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

// ObserveOperation records how long an engine operation took.
func (m *Metrics) ObserveOperation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operationDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

// StockAdjusted counts a manual ledger adjustment.
func (m *Metrics) StockAdjusted() {
	if m == nil {
		return
	}
	m.stockAdjustments.Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
