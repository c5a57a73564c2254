package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Reconciliation metrics
	ReconcileRunsTotal     *prometheus.CounterVec
	ReconcileRunDuration   *prometheus.HistogramVec
	ReconcileOutcomesTotal *prometheus.CounterVec

	// Provisioning metrics
	IdentityCallsTotal *prometheus.CounterVec
	EmailsTotal        *prometheus.CounterVec

	// Policy metrics
	PoliciesExpiredTotal prometheus.Counter
	ExpiryRunsTotal      *prometheus.CounterVec

	// Auth metrics
	ProfileCacheTotal       *prometheus.CounterVec
	RateLimitRejectionTotal prometheus.Counter
}

// NewMetrics creates and registers all portal metrics on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_runs_total",
				Help:      "Orphan profile reconciliation runs",
			},
			[]string{"mode", "result"},
		),
		ReconcileRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_run_duration_seconds",
				Help:      "Duration of reconciliation runs",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"mode"},
		),
		ReconcileOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_outcomes_total",
				Help:      "Per-client reconciliation outcomes by action",
			},
			[]string{"action"},
		),
		IdentityCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "identity_calls_total",
				Help:      "Calls to the identity provider admin API",
			},
			[]string{"operation", "result"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_emails_total",
				Help:      "Temporary credential notifications",
			},
			[]string{"result"},
		),
		PoliciesExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policies_expired_total",
				Help:      "Policies transitioned to expired by the expiry job",
			},
		),
		ExpiryRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_expiry_runs_total",
				Help:      "Policy expiry job runs",
			},
			[]string{"result"},
		),
		ProfileCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profile_cache_lookups_total",
				Help:      "Access profile cache lookups",
			},
			[]string{"result"},
		),
		RateLimitRejectionTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Requests rejected by the rate limiter",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReconcileRunsTotal,
		m.ReconcileRunDuration,
		m.ReconcileOutcomesTotal,
		m.IdentityCallsTotal,
		m.EmailsTotal,
		m.PoliciesExpiredTotal,
		m.ExpiryRunsTotal,
		m.ProfileCacheTotal,
		m.RateLimitRejectionTotal,
	)

	return m
}

// RegisterDBStats exposes connection pool statistics of db
func (m *Metrics) RegisterDBStats(db *sql.DB) {
	m.registry.MustRegister(collectors.NewDBStatsCollector(db, namespace))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func modeLabel(dryRun bool) string {
	if dryRun {
		return "dry_run"
	}
	return "live"
}

// RecordReconcileRun records one completed reconciliation run
func (m *Metrics) RecordReconcileRun(dryRun bool, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.ReconcileRunsTotal.WithLabelValues(modeLabel(dryRun), resultLabel(err)).Inc()
	m.ReconcileRunDuration.WithLabelValues(modeLabel(dryRun)).Observe(d.Seconds())
}

// RecordReconcileOutcome counts one per-client outcome
func (m *Metrics) RecordReconcileOutcome(action string) {
	if m == nil {
		return
	}
	m.ReconcileOutcomesTotal.WithLabelValues(action).Inc()
}

// RecordIdentityCall counts one identity provider admin call
func (m *Metrics) RecordIdentityCall(operation string, err error) {
	if m == nil {
		return
	}
	m.IdentityCallsTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordEmail counts one credential notification attempt
func (m *Metrics) RecordEmail(err error) {
	if m == nil {
		return
	}
	m.EmailsTotal.WithLabelValues(resultLabel(err)).Inc()
}

// RecordPolicyExpiry records an expiry job run
func (m *Metrics) RecordPolicyExpiry(expired int64, err error) {
	if m == nil {
		return
	}
	m.ExpiryRunsTotal.WithLabelValues(resultLabel(err)).Inc()
	if expired > 0 {
		m.PoliciesExpiredTotal.Add(float64(expired))
	}
}

// RecordProfileCache counts a profile cache hit or miss
func (m *Metrics) RecordProfileCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.ProfileCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.ProfileCacheTotal.WithLabelValues("miss").Inc()
}

// RecordRateLimited counts a rejected request
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRejectionTotal.Inc()
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests. Installed with router.Use so the
// route template, not the raw path, becomes the label.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
