package orgs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/plans"
)

// orgRepoHooks wraps the organization repository to observe creates and
// inject failures.
type orgRepoHooks struct {
	orgs.OrganizationRepository
	createErr error
	created   []uuid.UUID
}

func (r *orgRepoHooks) Create(ctx context.Context, org *orgs.Organization) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, org.ID)
	return r.OrganizationRepository.Create(ctx, org)
}

// failingMemberCreate rejects every member create.
type failingMemberCreate struct {
	orgs.MemberRepository
	err error
}

func (r *failingMemberCreate) Create(ctx context.Context, member *orgs.Member) error {
	return r.err
}

func TestSignUp_PaidPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, owner := f.signUpPaid(t)

	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, plans.PlanTeams, org.PlanType)
	assert.Equal(t, "Teams", org.Plan)
	require.NotNil(t, org.Seats)
	assert.Equal(t, 5, *org.Seats)
	require.NotNil(t, org.MaxSubvaults)
	assert.Equal(t, 20, *org.MaxSubvaults)
	assert.True(t, org.Enabled)
	assert.NotEmpty(t, org.BillingCustomerID)
	assert.NotEmpty(t, org.BillingSubscriptionID)
	assert.Equal(t, "plan-teams-monthly", org.BillingPlanID)

	assert.Equal(t, orgs.MemberStatusConfirmed, owner.Status)
	assert.Equal(t, orgs.RoleOwner, owner.Role)
	assert.True(t, owner.AccessAll)
	require.NotNil(t, owner.AccountID)
	assert.Empty(t, owner.Email)
	assert.Equal(t, "owner-org-key", owner.Key)

	// Without purchased seats the subscription is a single base line on a
	// trial.
	sub, err := f.provider.GetSubscription(ctx, org.BillingSubscriptionID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, billing.SubscriptionStatusTrialing, sub.Status)
	require.Len(t, sub.Items, 1)
	assert.Equal(t, "plan-teams-monthly", sub.Items[0].PriceID)
	assert.Equal(t, 1, sub.Items[0].Quantity)
}

func TestSignUp_PaidPlanWithExtraSeats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, _, err := f.service.SignUp(ctx, orgs.SignupParams{
		Name:           "Acme",
		BillingEmail:   "billing@acme.test",
		PlanType:       plans.PlanTeams,
		ExtraSeats:     3,
		PaymentToken:   "tok_visa",
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.NoError(t, err)

	require.NotNil(t, org.Seats)
	assert.Equal(t, 8, *org.Seats)
	assert.Equal(t, 3, org.ExtraSeats)

	sub, err := f.provider.GetSubscription(ctx, org.BillingSubscriptionID)
	require.NoError(t, err)
	require.Len(t, sub.Items, 2)
	assert.Equal(t, "plan-teams-monthly", sub.Items[0].PriceID)
	assert.Equal(t, 1, sub.Items[0].Quantity)
	assert.Equal(t, "plan-teams-seat-monthly", sub.Items[1].PriceID)
	assert.Equal(t, 3, sub.Items[1].Quantity)
}

func TestSignUp_MaximumExtraSeats(t *testing.T) {
	f := newFixture(t)

	org, _, err := f.service.SignUp(context.Background(), orgs.SignupParams{
		Name:           "Acme",
		BillingEmail:   "billing@acme.test",
		PlanType:       plans.PlanTeams,
		ExtraSeats:     10,
		PaymentToken:   "tok_visa",
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.NoError(t, err)
	require.NotNil(t, org.Seats)
	assert.Equal(t, 15, *org.Seats)
}

func TestSignUp_FreePlan(t *testing.T) {
	f := newFixture(t)

	org, owner := f.signUpFree(t, uuid.New())

	assert.Equal(t, plans.PlanFree, org.PlanType)
	require.NotNil(t, org.Seats)
	assert.Equal(t, 2, *org.Seats)
	require.NotNil(t, org.MaxSubvaults)
	assert.Equal(t, 2, *org.MaxSubvaults)
	assert.Empty(t, org.BillingCustomerID)
	assert.Empty(t, org.BillingSubscriptionID)
	assert.Equal(t, orgs.MemberStatusConfirmed, owner.Status)

	// Free sign-up never touches the billing provider.
	assert.Zero(t, f.provider.Calls(billing.OpCreateCustomer))
	assert.Zero(t, f.provider.Calls(billing.OpCreateSubscription))
}

func TestSignUp_SecondFreeAdminshipRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	accountID := uuid.New()
	f.signUpFree(t, accountID)

	_, _, err := f.service.SignUp(ctx, orgs.SignupParams{
		Name:           "Another",
		BillingEmail:   "free2@acme.test",
		PlanType:       plans.PlanFree,
		OwnerAccountID: accountID,
		OwnerKey:       "owner-org-key",
	})
	require.Error(t, err)
	assert.True(t, orgs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "one free organization")

	// A different account is unaffected.
	_, _, err = f.service.SignUp(ctx, orgs.SignupParams{
		Name:           "Another",
		BillingEmail:   "free2@acme.test",
		PlanType:       plans.PlanFree,
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.NoError(t, err)
}

func TestSignUp_Validation(t *testing.T) {
	valid := func() orgs.SignupParams {
		return orgs.SignupParams{
			Name:           "Acme",
			BillingEmail:   "billing@acme.test",
			PlanType:       plans.PlanTeams,
			PaymentToken:   "tok_visa",
			OwnerAccountID: uuid.New(),
			OwnerKey:       "owner-org-key",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*orgs.SignupParams)
		wantErr string
	}{
		{"missing name", func(p *orgs.SignupParams) { p.Name = "" }, "Organization name is required."},
		{"missing billing email", func(p *orgs.SignupParams) { p.BillingEmail = "" }, "Billing email is required."},
		{"missing owner account", func(p *orgs.SignupParams) { p.OwnerAccountID = uuid.Nil }, "Owner account is required."},
		{"unknown plan", func(p *orgs.SignupParams) { p.PlanType = "enterprise" }, "Plan not found."},
		{"retired plan", func(p *orgs.SignupParams) { p.PlanType = plans.PlanTeamsLegacy }, "Plan not found."},
		{"missing payment token", func(p *orgs.SignupParams) { p.PaymentToken = "" }, "Payment token is required."},
		{"negative extra seats", func(p *orgs.SignupParams) { p.ExtraSeats = -1 }, "Additional seat count cannot be negative."},
		{"too many extra seats", func(p *orgs.SignupParams) { p.ExtraSeats = 11 }, "Plan allows a maximum of 10 additional seats."},
		{"extra seats on free plan", func(p *orgs.SignupParams) {
			p.PlanType = plans.PlanFree
			p.ExtraSeats = 1
		}, "Plan does not allow additional seats."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			params := valid()
			tt.mutate(&params)

			_, _, err := f.service.SignUp(context.Background(), params)
			require.Error(t, err)
			assert.True(t, orgs.IsBadRequest(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSignUp_ProviderFailureCreatesNothing(t *testing.T) {
	hooks := &orgRepoHooks{}
	f := newFixture(t, func(cfg *orgs.ServiceConfig) {
		hooks.OrganizationRepository = cfg.Organizations
		cfg.Organizations = hooks
	})
	f.provider.FailNext(billing.OpCreateSubscription, &billing.ProviderError{
		Operation:   billing.OpCreateSubscription,
		StatusCode:  402,
		Code:        "card_declined",
		Message:     "Your card was declined.",
	})

	_, _, err := f.service.SignUp(context.Background(), orgs.SignupParams{
		Name:           "Acme",
		BillingEmail:   "billing@acme.test",
		PlanType:       plans.PlanTeams,
		PaymentToken:   "tok_visa",
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.Error(t, err)
	assert.True(t, orgs.IsBadRequest(err))
	assert.Contains(t, err.Error(), "Your card was declined.")

	// Billing failed before any local write, so nothing exists to roll back.
	assert.Empty(t, hooks.created)
	assert.Zero(t, testutil.ToFloat64(f.metrics.SignupRollbacksTotal.WithLabelValues("clean")))
}

func TestSignUp_OrgCreateFailureCancelsSubscription(t *testing.T) {
	f := newFixture(t, func(cfg *orgs.ServiceConfig) {
		cfg.Organizations = &orgRepoHooks{
			OrganizationRepository: cfg.Organizations,
			createErr:              errors.New("disk full"),
		}
	})

	_, _, err := f.service.SignUp(context.Background(), orgs.SignupParams{
		Name:           "Acme",
		BillingEmail:   "billing@acme.test",
		PlanType:       plans.PlanTeams,
		PaymentToken:   "tok_visa",
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create organization")

	assert.Equal(t, 1, f.provider.Calls(billing.OpCancelSubscription))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SignupRollbacksTotal.WithLabelValues("clean")))
}

func TestSignUp_OwnerCreateFailureRollsBack(t *testing.T) {
	hooks := &orgRepoHooks{}
	f := newFixture(t, func(cfg *orgs.ServiceConfig) {
		hooks.OrganizationRepository = cfg.Organizations
		cfg.Organizations = hooks
		cfg.Members = &failingMemberCreate{MemberRepository: cfg.Members, err: errors.New("disk full")}
	})
	ctx := context.Background()

	_, _, err := f.service.SignUp(ctx, orgs.SignupParams{
		Name:           "Acme",
		BillingEmail:   "billing@acme.test",
		PlanType:       plans.PlanTeams,
		PaymentToken:   "tok_visa",
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create owner member")

	// The organization that was written is gone again and the remote
	// subscription is canceled.
	require.Len(t, hooks.created, 1)
	org, getErr := f.store.Organizations().GetByID(ctx, hooks.created[0])
	require.NoError(t, getErr)
	assert.Nil(t, org)
	assert.Equal(t, 1, f.provider.Calls(billing.OpCancelSubscription))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SignupRollbacksTotal.WithLabelValues("clean")))
}

func TestSignUp_RollbackCancelFailureIsCounted(t *testing.T) {
	f := newFixture(t, func(cfg *orgs.ServiceConfig) {
		cfg.Members = &failingMemberCreate{MemberRepository: cfg.Members, err: errors.New("disk full")}
	})
	f.provider.FailNext(billing.OpGetSubscription, &billing.ProviderError{
		Operation:   billing.OpGetSubscription,
		StatusCode:  503,
		Message:     "service unavailable",
		Unavailable: true,
	})

	_, _, err := f.service.SignUp(context.Background(), orgs.SignupParams{
		Name:           "Acme",
		BillingEmail:   "billing@acme.test",
		PlanType:       plans.PlanTeams,
		PaymentToken:   "tok_visa",
		OwnerAccountID: uuid.New(),
		OwnerKey:       "owner-org-key",
	})
	require.Error(t, err)
	// The local failure surfaces, not the rollback failure.
	assert.Contains(t, err.Error(), "failed to create owner member")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SignupRollbacksTotal.WithLabelValues("cancel_failed")))
}

func TestDelete_CancelsSubscriptionAtPeriodEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, _ := f.signUpPaid(t)
	require.NoError(t, f.service.Delete(ctx, org.ID))

	got, err := f.store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	sub, err := f.provider.GetSubscription(ctx, org.BillingSubscriptionID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.True(t, sub.CancelAtPeriodEnd)
}

func TestDelete_ToleratesCanceledSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, _ := f.signUpPaid(t)
	require.NoError(t, f.service.CancelSubscription(ctx, org.ID, false))
	require.Equal(t, 1, f.provider.Calls(billing.OpCancelSubscription))

	require.NoError(t, f.service.Delete(ctx, org.ID))

	got, err := f.store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	// The already-canceled subscription is detected on the status check, so
	// no second cancellation request goes out.
	assert.Equal(t, 1, f.provider.Calls(billing.OpCancelSubscription))
}

func TestDelete_FreeOrganizationSkipsProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, _ := f.signUpFree(t, uuid.New())
	require.NoError(t, f.service.Delete(ctx, org.ID))

	assert.Zero(t, f.provider.Calls(billing.OpCancelSubscription))
	got, err := f.store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDelete_ProviderOutageBlocksDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org, _ := f.signUpPaid(t)
	f.provider.FailNext(billing.OpGetSubscription, &billing.ProviderError{
		Operation:   billing.OpGetSubscription,
		StatusCode:  503,
		Message:     "service unavailable",
		Unavailable: true,
	})

	err := f.service.Delete(ctx, org.ID)
	require.Error(t, err)
	assert.True(t, billing.IsProviderUnavailable(err))

	got, getErr := f.store.Organizations().GetByID(ctx, org.ID)
	require.NoError(t, getErr)
	assert.NotNil(t, got)
}
