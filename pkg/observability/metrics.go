package observability

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the permission engine.
type Metrics struct {
	// Compilation metrics
	CompilationsTotal       *prometheus.CounterVec
	CompilationDuration     prometheus.Histogram
	CompilationErrorsTotal  *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheStaleHitsTotal     prometheus.Counter
	InvalidationsTotal      *prometheus.CounterVec
	InvalidationFailures    prometheus.Counter

	// Authorization metrics
	AuthorizationsTotal     *prometheus.CounterVec
	AuthorizationDuration   prometheus.Histogram

	// Role mutation metrics
	RoleUpdatesTotal        *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive     prometheus.Gauge
	DBConnectionsIdle       prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on the registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		CompilationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linc_permission_compilations_total",
				Help: "Total number of permission compilations",
			},
			[]string{"trigger"}, // miss, forced
		),
		CompilationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linc_permission_compilation_duration_seconds",
				Help:    "Permission compilation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CompilationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linc_permission_compilation_errors_total",
				Help: "Total number of failed permission compilations",
			},
			[]string{"reason"}, // not_found, upstream
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linc_permission_cache_hits_total",
				Help: "Compiled-permission cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linc_permission_cache_misses_total",
				Help: "Compiled-permission cache misses",
			},
		),
		CacheStaleHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linc_permission_cache_stale_hits_total",
				Help: "Cache entries found but past their TTL (treated as misses)",
			},
		),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linc_permission_invalidations_total",
				Help: "Cache invalidations by kind",
			},
			[]string{"kind"}, // user, role
		),
		InvalidationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "linc_permission_invalidation_failures_total",
				Help: "Per-user invalidation failures during role fan-out",
			},
		),
		AuthorizationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linc_authorizations_total",
				Help: "Authorization decisions",
			},
			[]string{"decision"}, // allowed, denied
		),
		AuthorizationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linc_authorization_duration_seconds",
				Help:    "Authorization check duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		RoleUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linc_role_updates_total",
				Help: "Role permission-set updates by scope and outcome",
			},
			[]string{"scope", "outcome"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "linc_db_connections_active",
				Help: "Active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "linc_db_connections_idle",
				Help: "Idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.CompilationsTotal,
		m.CompilationDuration,
		m.CompilationErrorsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheStaleHitsTotal,
		m.InvalidationsTotal,
		m.InvalidationFailures,
		m.AuthorizationsTotal,
		m.AuthorizationDuration,
		m.RoleUpdatesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns the HTTP handler serving the registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// CollectDBStats copies database pool stats into the gauges. Intended to be
// called periodically.
func (m *Metrics) CollectDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	stats := db.Stats()
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// ObserveCompilation records one compilation with its trigger and duration.
func (m *Metrics) ObserveCompilation(trigger string, d time.Duration) {
	m.CompilationsTotal.WithLabelValues(trigger).Inc()
	m.CompilationDuration.Observe(d.Seconds())
}

// ObserveAuthorization records one authorization decision.
func (m *Metrics) ObserveAuthorization(allowed bool, d time.Duration) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.AuthorizationsTotal.WithLabelValues(decision).Inc()
	m.AuthorizationDuration.Observe(d.Seconds())
}
