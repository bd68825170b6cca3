package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/lms-platform/internal/models"
)

// MetricsSnapshot is a lightweight summary of the collected metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	AuthzAllowed             uint64    `json:"authz_allowed"`
	AuthzDenied              uint64    `json:"authz_denied"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation for both the router and tenant services.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	provisioning    *prometheus.CounterVec
	compensations   *prometheus.CounterVec
	authzDecisions  *prometheus.CounterVec
	tenantsGauge    prometheus.Gauge
	orphanedRoutes  prometheus.Gauge
	orphanedTenants prometheus.Gauge
	consistent      prometheus.Gauge
	gradeMutations  *prometheus.CounterVec
	expiredCodes    prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	authzAllowed         uint64
	authzDenied          uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	provisioning := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_provisioning_total",
		Help: "University provisioning attempts by outcome",
	}, []string{"outcome"})

	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_compensations_total",
		Help: "Instance compensation attempts by outcome",
	}, []string{"outcome"})

	authzDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_authz_decisions_total",
		Help: "Authorization decisions by action and result",
	}, []string{"action", "result"})

	tenantsGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lms_registered_tenants",
		Help: "Tenants in the registry at the last inspection",
	})

	orphanedRoutes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lms_orphaned_routes",
		Help: "Routing entries without a tenant at the last inspection",
	})

	orphanedTenants := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lms_orphaned_tenants",
		Help: "Tenants without a routing entry at the last inspection",
	})

	consistent := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lms_data_consistency",
		Help: "1 when registry and routing table agreed at the last inspection",
	})

	gradeMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lms_grade_mutations_total",
		Help: "Grade writes by operation",
	}, []string{"operation"})

	expiredCodes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lms_verification_expired_total",
		Help: "Pending verifications marked expired by the sweep",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		provisioning, compensations, authzDecisions, tenantsGauge, orphanedRoutes, orphanedTenants, consistent,
		gradeMutations, expiredCodes, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		provisioning:    provisioning,
		compensations:   compensations,
		authzDecisions:  authzDecisions,
		tenantsGauge:    tenantsGauge,
		orphanedRoutes:  orphanedRoutes,
		orphanedTenants: orphanedTenants,
		consistent:      consistent,
		gradeMutations:  gradeMutations,
		expiredCodes:    expiredCodes,
	}
}

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
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
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
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

// RecordProvisioning counts a provisioning attempt by outcome
// (succeeded, rejected, create_failed, install_failed, register_failed).
func (m *MetricsService) RecordProvisioning(outcome string) {
	if m == nil {
		return
	}
	m.provisioning.WithLabelValues(outcome).Inc()
}

// RecordCompensation counts an instance deletion attempt made to undo a failed provisioning.
func (m *MetricsService) RecordCompensation(outcome string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(outcome).Inc()
}

// RecordAuthzDecision counts a guard evaluation.
func (m *MetricsService) RecordAuthzDecision(action string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
		atomic.AddUint64(&m.authzAllowed, 1)
	} else {
		atomic.AddUint64(&m.authzDenied, 1)
	}
	m.authzDecisions.WithLabelValues(action, result).Inc()
}

// RecordInspection publishes the result of a full system inspection.
func (m *MetricsService) RecordInspection(inspection *models.SystemInspection) {
	if m == nil || inspection == nil {
		return
	}
	m.tenantsGauge.Set(float64(inspection.Registry.TotalTenants))
	m.orphanedRoutes.Set(float64(len(inspection.OrphanedRoutes)))
	m.orphanedTenants.Set(float64(len(inspection.OrphanedTenants)))
	if inspection.DataConsistency {
		m.consistent.Set(1)
	} else {
		m.consistent.Set(0)
	}
}

// RecordGradeMutation counts grade writes.
func (m *MetricsService) RecordGradeMutation(operation string) {
	if m == nil {
		return
	}
	m.gradeMutations.WithLabelValues(operation).Inc()
}

// RecordExpiredVerifications adds n sweep expirations.
func (m *MetricsService) RecordExpiredVerifications(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredCodes.Add(float64(n))
}

// Snapshot returns aggregated metrics suitable for summary endpoints.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
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
		CacheHitRatio:            cacheRatio,
		AuthzAllowed:             atomic.LoadUint64(&m.authzAllowed),
		AuthzDenied:              atomic.LoadUint64(&m.authzDenied),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
