package orgs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/plans"
)

// validateExtraSeats applies the plan's additional-seat policy.
func validateExtraSeats(plan *plans.Plan, extraSeats int) error {
	if extraSeats < 0 {
		return badRequest("Additional seat count cannot be negative.")
	}
	if extraSeats > 0 && !plan.CanBuyAdditionalSeats {
		return badRequest("Plan does not allow additional seats.")
	}
	if plan.MaxAdditionalSeats != nil && extraSeats > *plan.MaxAdditionalSeats {
		return badRequestLimit(*plan.MaxAdditionalSeats,
			"Plan allows a maximum of %d additional seats.", *plan.MaxAdditionalSeats)
	}
	return nil
}

// stricterSubvaultCeiling reports whether the new ceiling is defined and
// lower than the current one. Only then does the subvault count need
// checking on upgrade.
func stricterSubvaultCeiling(current, next *int) bool {
	if next == nil {
		return false
	}
	return current == nil || *next < *current
}

// ReplacePaymentMethod attaches a new default payment source to the
// organization's billing customer, creating the customer from the token
// when none exists yet. The new source is attached before the prior
// default is removed.
func (s *Service) ReplacePaymentMethod(ctx context.Context, orgID uuid.UUID, paymentToken string) (err error) {
	start := time.Now()
	defer func() { s.instrument(opReplacePayment, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if paymentToken == "" {
		return badRequest("Payment token is required.")
	}

	customerID, created, err := s.billing.EnsureCustomer(ctx, billing.EnsureCustomerParams{
		CustomerID:  org.BillingCustomerID,
		Email:       org.BillingEmail,
		Description: org.Name,
		CardToken:   paymentToken,
	})
	if err != nil {
		return translateBillingError(err)
	}

	if created {
		// The token was consumed creating the customer, with the source
		// already attached. Persist the new reference before anything else
		// can depend on it.
		org.BillingCustomerID = customerID
		org.UpdatedAt = time.Now().UTC()
		if replaceErr := s.orgs.Replace(ctx, org); replaceErr != nil {
			return s.billingGap(opReplacePayment, orgID, replaceErr)
		}
		s.invalidateSnapshot(ctx, orgID)
		return nil
	}

	if _, sourceErr := s.billing.ReplacePaymentSource(ctx, customerID, paymentToken); sourceErr != nil {
		return translateBillingError(sourceErr)
	}
	s.invalidateSnapshot(ctx, orgID)
	return nil
}

// UpgradePlan moves the organization to a strictly higher-ranked plan,
// reshaping the remote subscription (or creating one when upgrading off the
// free plan) before the local plan fields change.
func (s *Service) UpgradePlan(ctx context.Context, orgID uuid.UUID, newPlanType plans.PlanType, extraSeats int) (err error) {
	start := time.Now()
	defer func() { s.instrument(opUpgradePlan, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return err
	}

	currentPlan := s.catalog.Find(org.PlanType)
	if currentPlan == nil {
		return badRequest("Existing plan not found.")
	}
	newPlan := s.catalog.FindPurchasable(newPlanType)
	if newPlan == nil {
		return badRequest("Plan not found.")
	}
	if newPlan.UpgradeSortOrder <= currentPlan.UpgradeSortOrder {
		return badRequest("You cannot upgrade to this plan.")
	}
	if err := validateExtraSeats(newPlan, extraSeats); err != nil {
		return err
	}

	newCeiling := newPlan.SeatCeiling(extraSeats)
	if newCeiling != nil {
		memberCount, countErr := s.CountMembers(ctx, orgID)
		if countErr != nil {
			return countErr
		}
		if memberCount > *newCeiling {
			return badRequestLimit(*newCeiling,
				"Organization currently has %d members. The new plan only allows %d seats.",
				memberCount, *newCeiling)
		}
	}

	if stricterSubvaultCeiling(org.MaxSubvaults, newPlan.MaxSubvaults) {
		subvaultCount, countErr := s.CountSubvaults(ctx, orgID)
		if countErr != nil {
			return countErr
		}
		if subvaultCount > *newPlan.MaxSubvaults {
			return badRequestLimit(*newPlan.MaxSubvaults,
				"Organization currently has %d subvaults. The new plan only allows %d.",
				subvaultCount, *newPlan.MaxSubvaults)
		}
	}

	if org.BillingSubscriptionID != "" {
		if _, updateErr := s.billing.ChangeSubscriptionPlan(ctx, org.BillingSubscriptionID, newPlan, extraSeats); updateErr != nil {
			return translateBillingError(updateErr)
		}
	} else {
		if org.BillingCustomerID == "" {
			return badRequest("No payment method found.")
		}
		subscription, createErr := s.billing.CreateSubscription(ctx, org.BillingCustomerID, newPlan, extraSeats)
		if createErr != nil {
			return translateBillingError(createErr)
		}
		org.BillingSubscriptionID = subscription.ID
	}

	org.Plan = newPlan.Name
	org.PlanType = newPlan.Type
	org.Seats = newPlan.SeatCeiling(extraSeats)
	org.MaxSubvaults = copyIntPtr(newPlan.MaxSubvaults)
	org.ExtraSeats = extraSeats
	org.BillingPlanID = newPlan.BillingPlanID
	org.UpdatedAt = time.Now().UTC()
	if replaceErr := s.orgs.Replace(ctx, org); replaceErr != nil {
		return s.billingGap(opUpgradePlan, orgID, replaceErr)
	}

	s.invalidateSnapshot(ctx, orgID)
	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"plan":            string(newPlan.Type),
	}).Info("organization plan upgraded")
	return nil
}

// AdjustSeats changes the purchased extra-seat count on the existing
// subscription, adding or removing the per-seat line as needed.
func (s *Service) AdjustSeats(ctx context.Context, orgID uuid.UUID, extraSeats int) (err error) {
	start := time.Now()
	defer func() { s.instrument(opAdjustSeats, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	plan := s.catalog.Find(org.PlanType)
	if plan == nil {
		return badRequest("Existing plan not found.")
	}
	if !plan.CanBuyAdditionalSeats {
		return badRequest("Plan does not allow additional seats.")
	}
	if org.BillingSubscriptionID == "" {
		return badRequest("No subscription found.")
	}
	if err := validateExtraSeats(plan, extraSeats); err != nil {
		return err
	}

	ceiling := plan.SeatCeiling(extraSeats)
	if ceiling != nil {
		memberCount, countErr := s.CountMembers(ctx, orgID)
		if countErr != nil {
			return countErr
		}
		if memberCount > *ceiling {
			return badRequestLimit(*ceiling,
				"Organization currently has %d members. The new seat count only allows %d.",
				memberCount, *ceiling)
		}
	}

	if _, updateErr := s.billing.UpdateSubscriptionSeats(ctx, org.BillingSubscriptionID, plan, extraSeats); updateErr != nil {
		return translateBillingError(updateErr)
	}

	org.Seats = ceiling
	org.ExtraSeats = extraSeats
	org.UpdatedAt = time.Now().UTC()
	if replaceErr := s.orgs.Replace(ctx, org); replaceErr != nil {
		return s.billingGap(opAdjustSeats, orgID, replaceErr)
	}
	s.invalidateSnapshot(ctx, orgID)
	return nil
}

// CancelSubscription cancels the organization's remote subscription,
// immediately or at period end. An already-canceled subscription is
// rejected without a second provider call.
func (s *Service) CancelSubscription(ctx context.Context, orgID uuid.UUID, endOfPeriod bool) (err error) {
	start := time.Now()
	defer func() { s.instrument(opCancelSubscription, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	if org.BillingSubscriptionID == "" {
		return badRequest("No subscription found.")
	}
	if _, cancelErr := s.billing.CancelSubscription(ctx, org.BillingSubscriptionID, endOfPeriod); cancelErr != nil {
		return translateBillingError(cancelErr)
	}
	s.invalidateSnapshot(ctx, orgID)
	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"end_of_period":   endOfPeriod,
	}).Info("subscription canceled")
	return nil
}

// GetBilling returns the organization's billing snapshot, served through
// the snapshot cache when one is configured.
func (s *Service) GetBilling(ctx context.Context, orgID uuid.UUID) (_ *billing.Snapshot, err error) {
	start := time.Now()
	defer func() { s.instrument(opGetBilling, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var snapshot *billing.Snapshot
	if s.snapshots != nil {
		snapshot, err = s.snapshots.Get(ctx, org.ID, org.BillingCustomerID, org.BillingSubscriptionID)
	} else {
		snapshot, err = s.billing.GetBillingSnapshot(ctx, org.BillingCustomerID, org.BillingSubscriptionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load billing snapshot: %w", err)
	}
	return snapshot, nil
}
