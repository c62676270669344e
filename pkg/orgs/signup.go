package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/plans"
)

// SignupParams describes a new organization and its founding owner.
type SignupParams struct {
	Name         string
	BusinessName string
	BillingEmail string
	PlanType     plans.PlanType
	ExtraSeats   int

	// PaymentToken is the provider-issued source token. Required for paid
	// plans, ignored for free ones.
	PaymentToken string

	OwnerAccountID uuid.UUID
	// OwnerKey is the organization key material encrypted for the owner.
	OwnerKey string
}

// SignUp creates an organization together with its founding owner, already
// confirmed. Paid plans create the remote customer and subscription before
// anything is written locally; when a local write fails afterwards the
// remote subscription is canceled and the partial organization deleted
// before the original error is returned.
func (s *Service) SignUp(ctx context.Context, params SignupParams) (_ *Organization, _ *Member, err error) {
	start := time.Now()
	defer func() { s.instrument(opSignUp, start, err) }()

	if params.Name == "" {
		return nil, nil, badRequest("Organization name is required.")
	}
	if params.BillingEmail == "" {
		return nil, nil, badRequest("Billing email is required.")
	}
	if params.OwnerAccountID == uuid.Nil {
		return nil, nil, badRequest("Owner account is required.")
	}

	plan := s.catalog.FindPurchasable(params.PlanType)
	if plan == nil {
		return nil, nil, badRequest("Plan not found.")
	}
	if err := validateExtraSeats(plan, params.ExtraSeats); err != nil {
		return nil, nil, err
	}

	if plan.IsFree() {
		adminships, err := s.members.CountFreeOrgAdminships(ctx, params.OwnerAccountID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count free organization adminships: %w", err)
		}
		if adminships > 0 {
			return nil, nil, badRequest("You can only be an admin of one free organization.")
		}
	}

	var customerID, subscriptionID string
	if plan.IsPaid() {
		if params.PaymentToken == "" {
			return nil, nil, badRequest("Payment token is required.")
		}
		customerID, _, err = s.billing.EnsureCustomer(ctx, billing.EnsureCustomerParams{
			Email:       params.BillingEmail,
			Description: params.Name,
			CardToken:   params.PaymentToken,
		})
		if err != nil {
			return nil, nil, translateBillingError(err)
		}
		subscription, err := s.billing.CreateSubscription(ctx, customerID, plan, params.ExtraSeats)
		if err != nil {
			return nil, nil, translateBillingError(err)
		}
		subscriptionID = subscription.ID
	}

	now := time.Now().UTC()
	org := &Organization{
		ID:                    uuid.New(),
		Name:                  params.Name,
		BusinessName:          params.BusinessName,
		BillingEmail:          params.BillingEmail,
		Plan:                  plan.Name,
		PlanType:              plan.Type,
		Seats:                 plan.SeatCeiling(params.ExtraSeats),
		MaxSubvaults:          copyIntPtr(plan.MaxSubvaults),
		ExtraSeats:            params.ExtraSeats,
		BillingCustomerID:     customerID,
		BillingSubscriptionID: subscriptionID,
		BillingPlanID:         plan.BillingPlanID,
		Enabled:               true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if createErr := s.orgs.Create(ctx, org); createErr != nil {
		if subscriptionID != "" {
			s.rollbackSignup(ctx, org.ID, subscriptionID, false)
		}
		return nil, nil, fmt.Errorf("failed to create organization: %w", createErr)
	}

	ownerAccountID := params.OwnerAccountID
	owner := &Member{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		AccountID:      &ownerAccountID,
		Key:            params.OwnerKey,
		Status:         MemberStatusConfirmed,
		Role:           RoleOwner,
		AccessAll:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if createErr := s.members.Create(ctx, owner); createErr != nil {
		s.rollbackSignup(ctx, org.ID, subscriptionID, true)
		return nil, nil, fmt.Errorf("failed to create owner member: %w", createErr)
	}

	s.logger.WithFields(map[string]interface{}{
		"organization_id": org.ID,
		"plan":            string(plan.Type),
		"paid":            plan.IsPaid(),
	}).Info("organization created")
	return org, owner, nil
}

// rollbackSignup unwinds a failed sign-up: cancel the remote subscription
// that was just created, then delete the partially-created organization.
// Both steps are best effort; a step that fails leaves a gap for manual
// cleanup and is reflected in the rollback outcome.
func (s *Service) rollbackSignup(ctx context.Context, orgID uuid.UUID, subscriptionID string, orgCreated bool) {
	outcome := "clean"

	if subscriptionID != "" {
		_, cancelErr := s.billing.CancelSubscription(ctx, subscriptionID, false)
		if cancelErr != nil && !errors.Is(cancelErr, billing.ErrSubscriptionCanceled) {
			outcome = "cancel_failed"
			s.logger.WithError(cancelErr).WithFields(map[string]interface{}{
				"organization_id": orgID,
				"subscription_id": subscriptionID,
			}).Error("failed to cancel remote subscription during sign-up rollback")
		}
	}
	if orgCreated {
		if deleteErr := s.orgs.Delete(ctx, orgID); deleteErr != nil {
			if outcome == "clean" {
				outcome = "delete_failed"
			}
			s.logger.WithError(deleteErr).WithField("organization_id", orgID).
				Error("failed to delete organization during sign-up rollback")
		}
	}

	s.metrics.SignupRollbacksTotal.WithLabelValues(outcome).Inc()
	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"outcome":         outcome,
	}).Warn("sign-up rolled back")
}

// Delete cancels any remote subscription at period end and removes the
// organization with all its members and assignments. An already-canceled or
// missing remote subscription is tolerated.
func (s *Service) Delete(ctx context.Context, orgID uuid.UUID) (err error) {
	start := time.Now()
	defer func() { s.instrument(opDelete, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return err
	}

	if org.BillingSubscriptionID != "" {
		_, cancelErr := s.billing.CancelSubscription(ctx, org.BillingSubscriptionID, true)
		switch {
		case cancelErr == nil:
		case errors.Is(cancelErr, billing.ErrSubscriptionCanceled), errors.Is(cancelErr, billing.ErrNoSubscription):
			s.logger.WithField("organization_id", orgID).Info("no active remote subscription to cancel")
		default:
			return translateBillingError(cancelErr)
		}
	}

	if err := s.orgs.Delete(ctx, orgID); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	s.invalidateSnapshot(ctx, orgID)
	s.logger.WithField("organization_id", orgID).Info("organization deleted")
	return nil
}
