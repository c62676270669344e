package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/plans"
)

// maxSnapshotCharges caps the charge history returned in a billing snapshot.
const maxSnapshotCharges = 20

// Adapter wraps a Provider with the billing operations the organization
// lifecycle needs: it shapes subscriptions from plans, keeps payment source
// replacement to a safe order, and enforces cancellation semantics.
type Adapter struct {
	provider Provider
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewAdapter creates a new Adapter. Logger and metrics may be nil.
func NewAdapter(provider Provider, logger *observability.Logger, metrics *observability.Metrics) *Adapter {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Adapter{
		provider: provider,
		logger:   logger,
		metrics:  metrics,
	}
}

// observe records a provider request and its outcome
func (a *Adapter) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.ProviderRequestsTotal.WithLabelValues(operation, status).Inc()
	a.metrics.ProviderRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// EnsureCustomer resolves the organization's provider customer, creating one
// when the stored reference is empty or no longer resolves remotely. Returns
// the customer ID and whether a new customer was created; the caller is
// responsible for persisting a fresh reference.
func (a *Adapter) EnsureCustomer(ctx context.Context, params EnsureCustomerParams) (string, bool, error) {
	if params.CustomerID != "" {
		start := time.Now()
		customer, err := a.provider.GetCustomer(ctx, params.CustomerID)
		a.observe(OpGetCustomer, start, err)
		if err != nil {
			return "", false, fmt.Errorf("failed to get customer: %w", err)
		}
		if customer != nil {
			return customer.ID, false, nil
		}
		a.logger.WithField("customer_id", params.CustomerID).
			Warn("stored customer reference no longer resolves, creating a new customer")
	}

	start := time.Now()
	customer, err := a.provider.CreateCustomer(ctx, CreateCustomerParams{
		Email:       params.Email,
		Description: params.Description,
		CardToken:   params.CardToken,
	})
	a.observe(OpCreateCustomer, start, err)
	if err != nil {
		return "", false, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer.ID, true, nil
}

// ReplacePaymentSource attaches a new default card and then removes the
// previous default. The new card is attached first so a failure never leaves
// the customer without a payment source; a failed removal of the old card
// only leaves a stale non-default card behind and is logged, not surfaced.
func (a *Adapter) ReplacePaymentSource(ctx context.Context, customerID, cardToken string) (*Card, error) {
	start := time.Now()
	customer, err := a.provider.GetCustomer(ctx, customerID)
	a.observe(OpGetCustomer, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	priorSourceID := customer.DefaultSourceID

	start = time.Now()
	card, err := a.provider.CreateCard(ctx, customerID, CardParams{
		Token:      cardToken,
		SetDefault: true,
	})
	a.observe(OpCreateCard, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to attach card: %w", err)
	}

	if priorSourceID != "" && priorSourceID != card.ID {
		start = time.Now()
		err = a.provider.DeleteCard(ctx, customerID, priorSourceID)
		a.observe(OpDeleteCard, start, err)
		if err != nil {
			a.logger.WithError(err).WithFields(map[string]interface{}{
				"customer_id": customerID,
				"card_id":     priorSourceID,
			}).Warn("failed to remove previous payment source")
		}
	}

	return card, nil
}

// subscriptionItems builds the line items for a plan subscription: one base
// line at quantity 1, plus a seat line only when extra seats were purchased.
func subscriptionItems(plan *plans.Plan, extraSeats int) ([]SubscriptionItemParams, error) {
	if plan.BillingPlanID == "" {
		return nil, fmt.Errorf("plan %q has no billing plan", plan.Type)
	}
	items := []SubscriptionItemParams{
		{PriceID: plan.BillingPlanID, Quantity: 1},
	}
	if extraSeats > 0 {
		if plan.SeatPlanID == "" {
			return nil, fmt.Errorf("plan %q has no seat plan", plan.Type)
		}
		items = append(items, SubscriptionItemParams{
			PriceID:  plan.SeatPlanID,
			Quantity: extraSeats,
		})
	}
	return items, nil
}

// CreateSubscription creates a subscription for a paid plan
func (a *Adapter) CreateSubscription(ctx context.Context, customerID string, plan *plans.Plan, extraSeats int) (*Subscription, error) {
	items, err := subscriptionItems(plan, extraSeats)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sub, err := a.provider.CreateSubscription(ctx, CreateSubscriptionParams{
		CustomerID: customerID,
		Items:      items,
		TrialDays:  plan.TrialDays,
	})
	a.observe(OpCreateSubscription, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	return sub, nil
}

// UpdateSubscriptionSeats rewrites the subscription's lines for a new
// extra-seat count on the same plan.
func (a *Adapter) UpdateSubscriptionSeats(ctx context.Context, subscriptionID string, plan *plans.Plan, extraSeats int) (*Subscription, error) {
	return a.replaceItems(ctx, subscriptionID, plan, extraSeats)
}

// ChangeSubscriptionPlan rewrites the subscription's lines for a new plan,
// keeping any purchased extra seats on the new plan's seat price.
func (a *Adapter) ChangeSubscriptionPlan(ctx context.Context, subscriptionID string, newPlan *plans.Plan, extraSeats int) (*Subscription, error) {
	return a.replaceItems(ctx, subscriptionID, newPlan, extraSeats)
}

func (a *Adapter) replaceItems(ctx context.Context, subscriptionID string, plan *plans.Plan, extraSeats int) (*Subscription, error) {
	if subscriptionID == "" {
		return nil, ErrNoSubscription
	}
	items, err := subscriptionItems(plan, extraSeats)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	sub, err := a.provider.UpdateSubscription(ctx, subscriptionID, UpdateSubscriptionParams{Items: items})
	a.observe(OpUpdateSubscription, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrNoSubscription
	}
	return sub, nil
}

// GetSubscription fetches the remote subscription, returning nil when the
// provider no longer knows the reference.
func (a *Adapter) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	start := time.Now()
	sub, err := a.provider.GetSubscription(ctx, subscriptionID)
	a.observe(OpGetSubscription, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// CancelSubscription cancels a subscription, immediately or at period end.
// The current state is fetched first: cancelling an already-canceled
// subscription returns ErrSubscriptionCanceled without issuing a second
// cancellation. After the provider call the returned subscription must
// report the cancellation or ErrCancelUnconfirmed is returned.
func (a *Adapter) CancelSubscription(ctx context.Context, subscriptionID string, endOfPeriod bool) (*Subscription, error) {
	if subscriptionID == "" {
		return nil, ErrNoSubscription
	}

	start := time.Now()
	sub, err := a.provider.GetSubscription(ctx, subscriptionID)
	a.observe(OpGetSubscription, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, ErrNoSubscription
	}
	if sub.IsCanceled() {
		return nil, ErrSubscriptionCanceled
	}

	start = time.Now()
	canceled, err := a.provider.CancelSubscription(ctx, subscriptionID, endOfPeriod)
	a.observe(OpCancelSubscription, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if canceled == nil || (!canceled.IsCanceled() && !canceled.CancelAtPeriodEnd) {
		return nil, ErrCancelUnconfirmed
	}
	return canceled, nil
}

// GetBillingSnapshot fetches the customer's payment source, charge history,
// and subscription concurrently. Empty references skip their sections, and
// remote objects that no longer resolve are omitted rather than failing the
// whole snapshot.
func (a *Adapter) GetBillingSnapshot(ctx context.Context, customerID, subscriptionID string) (*Snapshot, error) {
	snapshot := &Snapshot{}
	eg, ctx := errgroup.WithContext(ctx)

	if customerID != "" {
		eg.Go(func() error {
			start := time.Now()
			customer, err := a.provider.GetCustomer(ctx, customerID)
			a.observe(OpGetCustomer, start, err)
			if err != nil {
				return fmt.Errorf("failed to get customer: %w", err)
			}
			if card := customer.DefaultCard(); card != nil {
				snapshot.PaymentSource = &PaymentSource{
					Brand:    card.Brand,
					Last4:    card.Last4,
					ExpMonth: card.ExpMonth,
					ExpYear:  card.ExpYear,
				}
			}
			return nil
		})
		eg.Go(func() error {
			start := time.Now()
			charges, err := a.provider.ListCharges(ctx, customerID, maxSnapshotCharges)
			a.observe(OpListCharges, start, err)
			if err != nil {
				return fmt.Errorf("failed to list charges: %w", err)
			}
			sort.Slice(charges, func(i, j int) bool {
				return charges[i].CreatedAt.After(charges[j].CreatedAt)
			})
			if len(charges) > maxSnapshotCharges {
				charges = charges[:maxSnapshotCharges]
			}
			snapshot.Charges = charges
			return nil
		})
	}

	if subscriptionID != "" {
		eg.Go(func() error {
			start := time.Now()
			sub, err := a.provider.GetSubscription(ctx, subscriptionID)
			a.observe(OpGetSubscription, start, err)
			if err != nil {
				return fmt.Errorf("failed to get subscription: %w", err)
			}
			snapshot.Subscription = sub
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
