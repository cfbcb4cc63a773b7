package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/formation-lms-api/internal/models"
)

const metricsNamespace = "lms"

// MetricsService owns a private Prometheus registry for the API and the PDF
// workers, and keeps running totals for the admin system snapshot.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec
	dbDuration   *prometheus.HistogramVec
	documents    *prometheus.CounterVec
	jobs         *prometheus.CounterVec
	jobsPending  prometheus.Gauge

	totals struct {
		requests, requestNanos atomic.Uint64
		hits, misses           atomic.Uint64
		queries, queryNanos    atomic.Uint64
		documents, docFailures atomic.Uint64
		jobFailures            atomic.Uint64
		pending                atomic.Int64
	}
}

// NewMetricsService builds and registers every collector.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry: prometheus.NewRegistry(),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by route template.", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		httpTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route template and status.",
		}, []string{"method", "route", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "lookups_total",
			Help: "Analytics cache lookups by result.",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "cache", Name: "operation_seconds",
			Help: "Analytics cache latency by operation.", Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		dbDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace, Subsystem: "db", Name: "query_duration_seconds",
			Help: "Duration of instrumented queries.", Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "documents_rendered_total",
			Help: "Generated PDF documents by kind and outcome.",
		}, []string{"kind", "outcome"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "jobs", Name: "processed_total",
			Help: "Background jobs by type and final outcome.",
		}, []string{"type", "outcome"}),
		jobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace, Subsystem: "jobs", Name: "pending",
			Help: "Jobs waiting in the PDF queue.",
		}),
	}
	m.registry.MustRegister(
		m.httpDuration, m.httpTotal,
		m.cacheLookups, m.cacheLatency,
		m.dbDuration, m.documents,
		m.jobs, m.jobsPending,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request. route is the gin template,
// not the raw path, to keep label cardinality bounded.
func (m *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, route, code).Inc()
	m.totals.requests.Add(1)
	m.totals.requestNanos.Add(uint64(duration))
}

// RecordCacheOperation records an analytics cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		m.totals.hits.Add(1)
	} else {
		m.totals.misses.Add(1)
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.WithLabelValues("get").Observe(duration.Seconds())
}

// ObserveCacheWrite records an analytics cache store.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveDBQuery records the duration of a named query.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(label).Observe(duration.Seconds())
	m.totals.queries.Add(1)
	m.totals.queryNanos.Add(uint64(duration))
}

// RecordDocument counts a rendered invoice, badge or certificate.
func (m *MetricsService) RecordDocument(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.totals.docFailures.Add(1)
	} else {
		m.totals.documents.Add(1)
	}
	m.documents.WithLabelValues(kind, outcome(err)).Inc()
}

// RecordJob counts a background job after its last attempt.
func (m *MetricsService) RecordJob(jobType string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.totals.jobFailures.Add(1)
	}
	m.jobs.WithLabelValues(jobType, outcome(err)).Inc()
}

// SetPendingJobs publishes the PDF queue depth.
func (m *MetricsService) SetPendingJobs(n int) {
	if m == nil {
		return
	}
	m.totals.pending.Store(int64(n))
	m.jobsPending.Set(float64(n))
}

// Snapshot summarises the running totals for GET /admin/analytics/system.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	now := time.Now().UTC()
	if m == nil {
		return models.SystemMetrics{Goroutines: runtime.NumGoroutine(), GeneratedAt: now}
	}
	hits, misses := m.totals.hits.Load(), m.totals.misses.Load()
	requests, queries := m.totals.requests.Load(), m.totals.queries.Load()
	return models.SystemMetrics{
		CacheHitRatio:            ratio(float64(hits), float64(hits+misses)),
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: meanMillis(m.totals.requestNanos.Load(), requests),
		DBQueryCount:             queries,
		AverageDBQueryDurationMs: meanMillis(m.totals.queryNanos.Load(), queries),
		DocumentsRendered:        m.totals.documents.Load(),
		DocumentFailures:         m.totals.docFailures.Load(),
		PendingJobs:              int(m.totals.pending.Load()),
		JobFailures:              m.totals.jobFailures.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              now,
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}

func meanMillis(totalNanos, n uint64) float64 {
	if n == 0 {
		return 0
	}
	return float64(totalNanos) / float64(n) / float64(time.Millisecond)
}
