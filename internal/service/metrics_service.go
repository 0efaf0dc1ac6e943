package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// MetricsSnapshot is a JSON summary of the collected counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	ValidationFailures       uint64    `json:"validation_failures"`
	ConflictWarnings         uint64    `json:"conflict_warnings"`
	DanglingReferences       int64     `json:"dangling_references"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for the timetable API.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Histogram
	cacheWrite         prometheus.Histogram
	cacheHitRatio      prometheus.Gauge
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	validationFailures *prometheus.CounterVec
	rejectedReferences *prometheus.CounterVec
	conflictWarnings   *prometheus.CounterVec
	danglingGauge      *prometheus.GaugeVec
	auditRuns          *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	validationCount      uint64
	conflictCount        uint64
	danglingTotal        int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_validation_failures_total",
			Help: "Rejected writes by entity and failure kind",
		}, []string{"entity", "kind"}),
		rejectedReferences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_rejected_references_total",
			Help: "Dangling references rejected on write by referenced kind",
		}, []string{"kind"}),
		conflictWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_conflict_warnings_total",
			Help: "Double-bookings detected by entity and shared resource",
		}, []string{"entity", "dimension"}),
		danglingGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "timetable_dangling_references",
			Help: "Referenced ids that no longer resolve, by kind, as of the last audit",
		}, []string{"kind"}),
		auditRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timetable_reference_audits_total",
			Help: "Reference audit runs by trigger and outcome",
		}, []string{"trigger", "outcome"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses, m.validationFailures, m.rejectedReferences, m.conflictWarnings,
		m.danglingGauge, m.auditRuns, goroutines)

	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordValidationFailure counts one failure per field error of a rejected write.
func (m *MetricsService) RecordValidationFailure(entity string, kinds ...string) {
	if m == nil {
		return
	}
	for _, kind := range kinds {
		m.validationFailures.WithLabelValues(entity, kind).Inc()
		atomic.AddUint64(&m.validationCount, 1)
	}
}

// RecordRejectedReference counts a dangling id rejected on write.
func (m *MetricsService) RecordRejectedReference(kind models.RefKind) {
	if m == nil {
		return
	}
	m.rejectedReferences.WithLabelValues(string(kind)).Inc()
}

// RecordConflicts counts detected double-bookings.
func (m *MetricsService) RecordConflicts(entity string, warnings []models.ConflictWarning) {
	if m == nil {
		return
	}
	for _, w := range warnings {
		m.conflictWarnings.WithLabelValues(entity, string(w.Dimension)).Inc()
		atomic.AddUint64(&m.conflictCount, 1)
	}
}

// SetDanglingReferences publishes the result of a full audit.
func (m *MetricsService) SetDanglingReferences(counts map[models.RefKind]int) {
	if m == nil {
		return
	}
	var total int64
	for _, kind := range []models.RefKind{models.RefTeacher, models.RefSubject, models.RefClass} {
		m.danglingGauge.WithLabelValues(string(kind)).Set(float64(counts[kind]))
		total += int64(counts[kind])
	}
	atomic.StoreInt64(&m.danglingTotal, total)
}

// RecordAudit counts an audit run.
func (m *MetricsService) RecordAudit(trigger string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.auditRuns.WithLabelValues(trigger, outcome).Inc()
}

// Snapshot returns aggregated metrics for the JSON summary endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            ratio,
		ValidationFailures:       atomic.LoadUint64(&m.validationCount),
		ConflictWarnings:         atomic.LoadUint64(&m.conflictCount),
		DanglingReferences:       atomic.LoadInt64(&m.danglingTotal),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
