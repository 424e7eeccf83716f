// Package metrics provides Prometheus metrics for the subsidy desk.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for latency histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns every metric the desk exports.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Domain
	eligibilityChecks      *prometheus.CounterVec
	applicationsByBucket   *prometheus.GaugeVec
	ocrRequests            *prometheus.CounterVec
	monitorRuns            prometheus.Counter
	monitorLastRunUnix     prometheus.Gauge
	importedRecords        *prometheus.CounterVec
	activeSessions         prometheus.Gauge
	eventStreamSubscribers prometheus.Gauge
}

// NewManager creates a manager on its own registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "careerup",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.eligibilityChecks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "eligibility_checks_total",
		Help:      "Wage increase checks by verdict (pass, fail, invalid)",
	}, []string{"verdict"})

	m.applicationsByBucket = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "applications_by_deadline_bucket",
		Help:      "Open applications per office and deadline bucket at the last monitor pass",
	}, []string{"office", "bucket"})

	m.ocrRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "ocr_requests_total",
		Help:      "Document extraction requests by document type and outcome",
	}, []string{"document_type", "outcome"})

	m.monitorRuns = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "deadline_monitor_runs_total",
		Help:      "Completed deadline monitor passes",
	})

	m.monitorLastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "deadline_monitor_last_run_unix",
		Help:      "Unix time of the last completed deadline monitor pass",
	})

	m.importedRecords = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "imported_records_total",
		Help:      "Records loaded through import by collection",
	}, []string{"collection"})

	m.activeSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "active_sessions",
		Help:      "Unexpired login sessions",
	})

	m.eventStreamSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "event_stream_subscribers",
		Help:      "Open server-sent event streams",
	})
}

// =============================================================================
// RECORDING
// =============================================================================

func (m *Manager) RecordEligibilityCheck(verdict string) {
	m.eligibilityChecks.WithLabelValues(verdict).Inc()
}

// SetBucketCounts replaces the gauges of one office.
func (m *Manager) SetBucketCounts(office string, counts map[string]int) {
	for bucket, n := range counts {
		m.applicationsByBucket.WithLabelValues(office, bucket).Set(float64(n))
	}
}

func (m *Manager) RecordOCRRequest(documentType, outcome string) {
	m.ocrRequests.WithLabelValues(documentType, outcome).Inc()
}

func (m *Manager) RecordMonitorRun(at time.Time) {
	m.monitorRuns.Inc()
	m.monitorLastRunUnix.Set(float64(at.Unix()))
}

func (m *Manager) RecordImport(clients, applications int) {
	m.importedRecords.WithLabelValues("clients").Add(float64(clients))
	m.importedRecords.WithLabelValues("applications").Add(float64(applications))
}

func (m *Manager) SetActiveSessions(n int) { m.activeSessions.Set(float64(n)) }

func (m *Manager) EventStreamOpened() { m.eventStreamSubscribers.Inc() }
func (m *Manager) EventStreamClosed() { m.eventStreamSubscribers.Dec() }

// =============================================================================
// HTTP
// =============================================================================

// Handler serves the registry in the Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, for tests and extra collectors.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Middleware counts requests by chi route pattern so that IDs in the path
// do not explode label cardinality.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
