package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	PermissionChecksTotal    *prometheus.CounterVec
	AccessDenialsTotal       *prometheus.CounterVec
	CrossTenantAttemptsTotal *prometheus.CounterVec

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsCreatedTotal prometheus.Counter
	SessionsExpiredTotal prometheus.Counter
	ContextSwitchesTotal prometheus.Counter

	// Enrollment metrics
	EnrollmentAttemptsTotal  *prometheus.CounterVec
	EnrollmentRetriesTotal   prometheus.Counter
	OverCapacityEnrollsTotal prometheus.Counter

	// Audit metrics
	AuditEntriesTotal   *prometheus.CounterVec
	AuditEvictionsTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registrar_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_permission_checks_total",
				Help: "Permission evaluations by role, resource, action and outcome",
			},
			[]string{"role", "resource", "action", "allowed"},
		),
		AccessDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_access_denials_total",
				Help: "Denied access checks by denial kind",
			},
			[]string{"kind"},
		),
		CrossTenantAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_cross_tenant_attempts_total",
				Help: "Cross-institutional access attempts by outcome",
			},
			[]string{"allowed"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "registrar_sessions_active",
				Help: "Number of live sessions in the session store",
			},
		),
		SessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_sessions_created_total",
				Help: "Total sessions created",
			},
		),
		SessionsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_sessions_expired_total",
				Help: "Total sessions removed by TTL expiry",
			},
		),
		ContextSwitchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_context_switches_total",
				Help: "Total institution context switches",
			},
		),
		EnrollmentAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_enrollment_attempts_total",
				Help: "Enrollment operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		EnrollmentRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_enrollment_retries_total",
				Help: "Optimistic-concurrency retries during seat admission",
			},
		),
		OverCapacityEnrollsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_over_capacity_enrolls_total",
				Help: "Administrator enrollments that exceeded course capacity",
			},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrar_audit_entries_total",
				Help: "Audit entries recorded by event type",
			},
			[]string{"event_type"},
		),
		AuditEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "registrar_audit_evictions_total",
				Help: "Audit entries evicted from the bounded in-memory trail",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.AccessDenialsTotal,
		m.CrossTenantAttemptsTotal,
		m.SessionsActive,
		m.SessionsCreatedTotal,
		m.SessionsExpiredTotal,
		m.ContextSwitchesTotal,
		m.EnrollmentAttemptsTotal,
		m.EnrollmentRetriesTotal,
		m.OverCapacityEnrollsTotal,
		m.AuditEntriesTotal,
		m.AuditEvictionsTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePermissionCheck records a permission evaluation outcome.
func (m *Metrics) ObservePermissionCheck(role, resource, action string, allowed bool) {
	m.PermissionChecksTotal.WithLabelValues(role, resource, action, strconv.FormatBool(allowed)).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
