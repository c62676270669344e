package orgs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/billing"
	"github.com/covault/covault/pkg/invites"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/plans"
)

// Operation labels used in metrics and logs.
const (
	opSignUp             = "signup"
	opDelete             = "delete"
	opReplacePayment     = "replace_payment_method"
	opUpgradePlan        = "upgrade_plan"
	opAdjustSeats        = "adjust_seats"
	opCancelSubscription = "cancel_subscription"
	opGetBilling         = "get_billing"
	opInviteMember       = "invite_member"
	opResendInvite       = "resend_invite"
	opAcceptInvite       = "accept_invite"
	opConfirmMember      = "confirm_member"
	opSaveMember         = "save_member"
	opRemoveMember       = "remove_member"
)

const defaultMailTimeout = 30 * time.Second

// ServiceConfig wires the orchestrator's collaborators.
type ServiceConfig struct {
	Organizations OrganizationRepository
	Members       MemberRepository
	Subvaults     SubvaultRepository
	Assignments   SubvaultAssignmentRepository

	Billing *billing.Adapter
	Catalog *plans.Catalog
	Tokens  *invites.TokenCodec
	Mailer  InviteMailer

	// Snapshots is optional; without it GetBilling reads the provider on
	// every call.
	Snapshots *billing.SnapshotCache

	// MailTimeout bounds a single invitation mail dispatch. Defaults to 30s.
	MailTimeout time.Duration

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Service orchestrates the organization lifecycle: sign-up, plan and seat
// changes, subscription cancellation, and the member invitation workflow.
// Every operation re-reads authoritative counts before mutating and keeps
// local state coupled to the remote billing provider as documented per
// operation.
type Service struct {
	orgs        OrganizationRepository
	members     MemberRepository
	subvaults   SubvaultRepository
	assignments SubvaultAssignmentRepository

	billing   *billing.Adapter
	snapshots *billing.SnapshotCache
	catalog   *plans.Catalog
	tokens    *invites.TokenCodec
	mailer    InviteMailer

	mailTimeout time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService validates the wiring and creates the orchestrator.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Organizations == nil:
		return nil, fmt.Errorf("organization repository is required")
	case cfg.Members == nil:
		return nil, fmt.Errorf("member repository is required")
	case cfg.Subvaults == nil:
		return nil, fmt.Errorf("subvault repository is required")
	case cfg.Assignments == nil:
		return nil, fmt.Errorf("subvault assignment repository is required")
	case cfg.Billing == nil:
		return nil, fmt.Errorf("billing adapter is required")
	case cfg.Catalog == nil:
		return nil, fmt.Errorf("plan catalog is required")
	case cfg.Tokens == nil:
		return nil, fmt.Errorf("invite token codec is required")
	case cfg.Mailer == nil:
		return nil, fmt.Errorf("invite mailer is required")
	}

	if cfg.MailTimeout <= 0 {
		cfg.MailTimeout = defaultMailTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNopMetrics()
	}

	return &Service{
		orgs:        cfg.Organizations,
		members:     cfg.Members,
		subvaults:   cfg.Subvaults,
		assignments: cfg.Assignments,
		billing:     cfg.Billing,
		snapshots:   cfg.Snapshots,
		catalog:     cfg.Catalog,
		tokens:      cfg.Tokens,
		mailer:      cfg.Mailer,
		mailTimeout: cfg.MailTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}, nil
}

// GetOrganization returns the organization by id.
func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.loadOrganization(ctx, id)
}

// GetMember returns the member by id, scoped to the organization.
func (s *Service) GetMember(ctx context.Context, orgID, memberID uuid.UUID) (*Member, error) {
	return s.loadMember(ctx, orgID, memberID)
}

// ListMembers returns every member of the organization in every status.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]*Member, error) {
	if _, err := s.loadOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	members, err := s.members.GetManyByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	return members, nil
}

func (s *Service) loadOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	org, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	if org == nil {
		return nil, notFound("organization")
	}
	return org, nil
}

func (s *Service) loadMember(ctx context.Context, orgID, memberID uuid.UUID) (*Member, error) {
	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil || member.OrganizationID != orgID {
		return nil, notFound("member")
	}
	return member, nil
}

// instrument records the outcome and duration of one orchestrator operation.
func (s *Service) instrument(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.OperationsTotal.WithLabelValues(operation, status).Inc()
	s.metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// translateBillingError maps adapter failures onto the caller-facing error
// taxonomy. Invalid-operation conditions and provider-side rejections become
// BadRequests; transport failures stay infrastructure errors.
func translateBillingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, billing.ErrSubscriptionCanceled):
		return badRequest("Subscription is already canceled.")
	case errors.Is(err, billing.ErrCancelUnconfirmed):
		return badRequest("The billing provider did not confirm the cancellation.")
	case errors.Is(err, billing.ErrNoSubscription):
		return badRequest("No subscription found.")
	case errors.Is(err, billing.ErrCustomerNotFound):
		return badRequest("Billing customer not found.")
	}
	var providerErr *billing.ProviderError
	if errors.As(err, &providerErr) && !providerErr.Unavailable && providerErr.Message != "" {
		return badRequest(providerErr.Message)
	}
	return err
}

// billingGap records a local write failure after a remote billing mutation
// succeeded. There is no compensation outside sign-up; the gap is surfaced,
// logged, and counted so operators can reconcile by hand.
func (s *Service) billingGap(operation string, orgID uuid.UUID, err error) error {
	s.metrics.BillingGapsTotal.WithLabelValues(operation).Inc()
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"operation":       operation,
		"organization_id": orgID,
	}).Error("local write failed after remote billing change")
	return fmt.Errorf("failed to persist organization after billing change: %w", err)
}

func (s *Service) invalidateSnapshot(ctx context.Context, orgID uuid.UUID) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, orgID)
	}
}
