package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Orchestrator metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Billing provider metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Billing consistency metrics
	BillingGapsTotal     *prometheus.CounterVec
	SignupRollbacksTotal *prometheus.CounterVec

	// Invite mail metrics
	InviteMailTotal *prometheus.CounterVec

	// Snapshot cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Reconciler metrics
	ReconcileRunsTotal   *prometheus.CounterVec
	ReconcileDriftTotal  *prometheus.CounterVec
	ReconcileOrgsChecked prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_operations_total",
				Help: "Total number of organization lifecycle operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "covault_operation_duration_seconds",
				Help:    "Organization lifecycle operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_billing_provider_requests_total",
				Help: "Total number of billing provider API requests",
			},
			[]string{"operation", "status"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "covault_billing_provider_request_duration_seconds",
				Help:    "Billing provider API request duration in seconds",
				Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),

		BillingGapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_billing_gaps_total",
				Help: "Local write failures that left remote billing state ahead of local state",
			},
			[]string{"operation"},
		),
		SignupRollbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_signup_rollbacks_total",
				Help: "Sign-up compensations that canceled a freshly created subscription",
			},
			[]string{"outcome"},
		),

		InviteMailTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_invite_mail_total",
				Help: "Invitation emails dispatched, by outcome",
			},
			[]string{"status"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_snapshot_cache_hits_total",
				Help: "Billing snapshot cache hits",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_snapshot_cache_misses_total",
				Help: "Billing snapshot cache misses",
			},
			[]string{"tier"},
		),

		ReconcileRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_reconcile_runs_total",
				Help: "Subscription drift reconciler runs",
			},
			[]string{"status"},
		),
		ReconcileDriftTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "covault_reconcile_drift_total",
				Help: "Drift findings between local and remote subscription state",
			},
			[]string{"kind"},
		),
		ReconcileOrgsChecked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "covault_reconcile_orgs_checked",
				Help: "Organizations examined by the most recent reconciler run",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.BillingGapsTotal,
		m.SignupRollbacksTotal,
		m.InviteMailTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ReconcileRunsTotal,
		m.ReconcileDriftTotal,
		m.ReconcileOrgsChecked,
	)

	return m
}

// NewNopMetrics creates an unregistered metrics set. Useful as the default
// when callers pass no registry; observations go nowhere.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
