package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/covault/covault/pkg/async"
	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/plans"
)

// Drift kinds reported by the reconciler.
const (
	DriftMissingSubscription  = "missing_subscription"
	DriftCanceledSubscription = "canceled_subscription"
	DriftSeatMismatch         = "seat_mismatch"
)

const (
	defaultSchedule = "@every 1h"
	defaultWorkers  = 4
	defaultTimeout  = 30 * time.Second
)

// Finding records one divergence between local organization state and the
// billing provider.
type Finding struct {
	OrganizationID uuid.UUID
	SubscriptionID string
	Kind           string
	Detail         string
}

// Report summarizes a single reconciler run.
type Report struct {
	OrgsChecked int
	Findings    []Finding
	CheckErrors int
}

// Config wires a Reconciler.
type Config struct {
	Organizations orgs.OrganizationRepository
	Billing       *billing.Adapter
	Catalog       *plans.Catalog

	// Schedule is a cron expression or @every duration. Defaults to hourly.
	Schedule string
	// Workers bounds concurrent provider lookups per run.
	Workers int
	// Timeout bounds each organization check.
	Timeout time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Reconciler periodically compares every organization that holds a
// subscription reference against the billing provider and reports drift.
// It never mutates local or remote state; findings surface through logs,
// metrics, and the returned Report so an operator can resolve them.
type Reconciler struct {
	organizations orgs.OrganizationRepository
	billing       *billing.Adapter
	catalog       *plans.Catalog

	schedule string
	workers  int
	timeout  time.Duration

	logger  *observability.Logger
	metrics *observability.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

// NewReconciler creates a new Reconciler.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Organizations == nil {
		return nil, errors.New("organization repository is required")
	}
	if cfg.Billing == nil {
		return nil, errors.New("billing adapter is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("plan catalog is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = defaultSchedule
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	return &Reconciler{
		organizations: cfg.Organizations,
		billing:       cfg.Billing,
		catalog:       cfg.Catalog,
		schedule:      cfg.Schedule,
		workers:       cfg.Workers,
		timeout:       cfg.Timeout,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}, nil
}

// Start schedules periodic runs. A run that is still going when the next
// tick fires is not doubled up.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return errors.New("reconciler already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.WithError(err).Error("subscription drift run failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule reconciler: %w", err)
	}
	c.Start()
	r.cron = c

	r.logger.WithField("schedule", r.schedule).Info("subscription drift reconciler started")
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce checks every organization that carries a subscription reference
// and returns the drift findings.
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	start := time.Now()

	organizations, err := r.organizations.GetManyWithSubscription(ctx)
	if err != nil {
		r.metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to list subscribed organizations: %w", err)
	}
	r.metrics.ReconcileOrgsChecked.Set(float64(len(organizations)))

	report := &Report{OrgsChecked: len(organizations)}
	var mu sync.Mutex

	batchCtx := observability.WithLogger(ctx, r.logger)
	errs := async.Batch(batchCtx, organizations, r.workers, "subscription drift check", r.timeout,
		func(ctx context.Context, org *orgs.Organization) error {
			findings, checkErr := r.checkOrganization(ctx, org)
			if checkErr != nil {
				return checkErr
			}
			if len(findings) > 0 {
				mu.Lock()
				report.Findings = append(report.Findings, findings...)
				mu.Unlock()
			}
			return nil
		})

	report.CheckErrors = len(errs)
	for _, checkErr := range errs {
		r.logger.WithError(checkErr).Warn("subscription drift check failed")
	}

	status := "success"
	if len(errs) > 0 {
		status = "partial"
	}
	r.metrics.ReconcileRunsTotal.WithLabelValues(status).Inc()

	r.logger.WithFields(map[string]interface{}{
		"organizations": report.OrgsChecked,
		"findings":      len(report.Findings),
		"errors":        report.CheckErrors,
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("subscription drift run complete")
	return report, nil
}

func (r *Reconciler) checkOrganization(ctx context.Context, org *orgs.Organization) ([]Finding, error) {
	remote, err := r.billing.GetSubscription(ctx, org.BillingSubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", org.ID, err)
	}

	var findings []Finding
	record := func(kind, detail string) {
		findings = append(findings, Finding{
			OrganizationID: org.ID,
			SubscriptionID: org.BillingSubscriptionID,
			Kind:           kind,
			Detail:         detail,
		})
		r.metrics.ReconcileDriftTotal.WithLabelValues(kind).Inc()
		r.logger.WithFields(map[string]interface{}{
			"organization_id": org.ID,
			"subscription_id": org.BillingSubscriptionID,
			"drift":           kind,
		}).Warn(detail)
	}

	if remote == nil {
		record(DriftMissingSubscription, "subscription no longer exists at the billing provider")
		return findings, nil
	}

	if remote.IsCanceled() && org.Enabled {
		record(DriftCanceledSubscription, "provider subscription is canceled while the organization is active")
	}

	plan := r.catalog.Find(org.PlanType)
	if plan == nil || plan.SeatPlanID == "" {
		return findings, nil
	}
	seatQuantity := 0
	for _, item := range remote.Items {
		if item.PriceID == plan.SeatPlanID {
			seatQuantity = item.Quantity
			break
		}
	}
	if seatQuantity != org.ExtraSeats {
		record(DriftSeatMismatch, fmt.Sprintf(
			"provider seat quantity %d does not match local extra seats %d",
			seatQuantity, org.ExtraSeats))
	}
	return findings, nil
}
