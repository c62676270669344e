package orgs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/async"
	"github.com/covault/covault/pkg/observability"
	"github.com/covault/covault/pkg/plans"
)

// InviteMemberParams describes a member invitation.
type InviteMemberParams struct {
	Email     string
	Role      MemberRole
	AccessAll bool
	// Subvaults is the requested assignment set; ignored when AccessAll is
	// set. Ids outside the organization are dropped silently.
	Subvaults []SubvaultSelection
}

// InviteMember creates an invited member and dispatches the invitation
// email fire-and-forget: a delivery failure is logged and counted, never
// returned. inviterName only appears in logs; authorization is the
// caller's concern.
func (s *Service) InviteMember(ctx context.Context, orgID uuid.UUID, inviterName string, params InviteMemberParams) (_ *Member, err error) {
	start := time.Now()
	defer func() { s.instrument(opInviteMember, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if email == "" {
		return nil, badRequest("Email is required.")
	}
	if !params.Role.Valid() {
		return nil, badRequest("Invalid member role.")
	}

	// Invitations occupy seats as much as confirmed members do.
	if org.Seats != nil {
		memberCount, countErr := s.CountMembers(ctx, orgID)
		if countErr != nil {
			return nil, countErr
		}
		if memberCount+1 > *org.Seats {
			return nil, badRequestLimit(*org.Seats,
				"Organization has reached its seat limit of %d. Upgrade the plan or buy additional seats.",
				*org.Seats)
		}
	}

	existing, err := s.members.GetByOrganizationAndEmail(ctx, orgID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing invitations: %w", err)
	}
	if existing != nil {
		return nil, badRequest("User already invited.")
	}

	now := time.Now().UTC()
	member := &Member{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Email:          email,
		Status:         MemberStatusInvited,
		Role:           params.Role,
		AccessAll:      params.AccessAll,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	token, err := s.tokens.Issue(member.ID, member.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue invite token: %w", err)
	}

	if err := s.members.Create(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	if err := s.ReconcileSubvaultAssignments(ctx, member, params.Subvaults, true); err != nil {
		return nil, err
	}
	s.dispatchInvite(org.Name, member, token)

	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"member_id":       member.ID,
		"role":            string(member.Role),
		"invited_by":      inviterName,
	}).Info("member invited")
	return member, nil
}

// dispatchInvite sends the invitation email off the request path. SafeGo
// recovers panics; failures are counted and logged with the member context.
func (s *Service) dispatchInvite(orgName string, member *Member, token string) {
	m := *member
	mailCtx := observability.WithLogger(context.Background(), s.logger)
	async.SafeGo(mailCtx, s.mailTimeout, "organization invite mail", func(ctx context.Context) error {
		if mailErr := s.mailer.SendOrganizationInvite(ctx, orgName, &m, token); mailErr != nil {
			s.metrics.InviteMailTotal.WithLabelValues("error").Inc()
			s.logger.WithError(mailErr).WithFields(map[string]interface{}{
				"organization_id": m.OrganizationID,
				"member_id":       m.ID,
			}).Error("failed to send invitation email")
			// Handled here; nothing left for SafeGo to report.
			return nil
		}
		s.metrics.InviteMailTotal.WithLabelValues("success").Inc()
		return nil
	})
}

// ResendInvite issues a fresh token for a pending invitation and re-sends
// the email.
func (s *Service) ResendInvite(ctx context.Context, orgID, memberID uuid.UUID) (err error) {
	start := time.Now()
	defer func() { s.instrument(opResendInvite, start, err) }()

	org, err := s.loadOrganization(ctx, orgID)
	if err != nil {
		return err
	}
	member, err := s.loadMember(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if member.Status != MemberStatusInvited {
		return badRequest("Member invalid.")
	}

	token, err := s.tokens.Issue(member.ID, member.Email)
	if err != nil {
		return fmt.Errorf("failed to issue invite token: %w", err)
	}
	s.dispatchInvite(org.Name, member, token)
	return nil
}

// AcceptInvite binds the accepting account to a pending invitation. The
// token must be authentic, within its validity window, and bound to both
// this member and the invitation email; the accepting account's email must
// match the invitation too.
func (s *Service) AcceptInvite(ctx context.Context, memberID, accountID uuid.UUID, accountEmail, token string) (_ *Member, err error) {
	start := time.Now()
	defer func() { s.instrument(opAcceptInvite, start, err) }()

	member, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	if member == nil {
		return nil, notFound("member")
	}
	if member.Status != MemberStatusInvited {
		return nil, badRequest("Already accepted.")
	}

	if tokenErr := s.tokens.Validate(token, member.ID, member.Email); tokenErr != nil {
		// Forgery, expiry, and mismatch are deliberately indistinguishable.
		return nil, badRequest("Invalid token.")
	}
	// Email comparison is case-insensitive at this boundary only.
	if !strings.EqualFold(accountEmail, member.Email) {
		return nil, badRequest("User email does not match invite.")
	}

	if member.Role.IsAdminOrOwner() {
		org, orgErr := s.loadOrganization(ctx, member.OrganizationID)
		if orgErr != nil {
			return nil, orgErr
		}
		if org.PlanType == plans.PlanFree {
			adminships, countErr := s.members.CountFreeOrgAdminships(ctx, accountID)
			if countErr != nil {
				return nil, fmt.Errorf("failed to count free organization adminships: %w", countErr)
			}
			if adminships > 0 {
				return nil, badRequest("You can only be an admin of one free organization.")
			}
		}
	}

	boundAccountID := accountID
	member.Status = MemberStatusAccepted
	member.AccountID = &boundAccountID
	member.Email = ""
	member.UpdatedAt = time.Now().UTC()
	if err := s.members.Replace(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}
	return member, nil
}

// ConfirmMember grants an accepted member access by storing the
// organization key material encrypted for their account.
func (s *Service) ConfirmMember(ctx context.Context, orgID, memberID uuid.UUID, key string) (_ *Member, err error) {
	start := time.Now()
	defer func() { s.instrument(opConfirmMember, start, err) }()

	member, err := s.loadMember(ctx, orgID, memberID)
	if err != nil {
		return nil, err
	}
	if member.Status != MemberStatusAccepted {
		return nil, badRequest("Member invalid.")
	}
	if key == "" {
		return nil, badRequest("Key material is required.")
	}

	member.Status = MemberStatusConfirmed
	member.Key = key
	member.Email = ""
	member.UpdatedAt = time.Now().UTC()
	if err := s.members.Replace(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to save member: %w", err)
	}
	return member, nil
}

// SaveMember updates a member's role and access settings and reconciles
// their subvault assignments.
func (s *Service) SaveMember(ctx context.Context, member *Member, subvaults []SubvaultSelection) (err error) {
	start := time.Now()
	defer func() { s.instrument(opSaveMember, start, err) }()

	if member == nil || member.ID == uuid.Nil {
		return badRequest("Invite the user first.")
	}
	current, err := s.members.GetByID(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("failed to load member: %w", err)
	}
	if current == nil {
		return notFound("member")
	}
	if !member.Role.Valid() {
		return badRequest("Invalid member role.")
	}

	if member.Role != RoleOwner {
		if err := s.ensureOwnersRemain(ctx, current.OrganizationID, current.ID); err != nil {
			return err
		}
	}

	current.Role = member.Role
	current.AccessAll = member.AccessAll
	current.UpdatedAt = time.Now().UTC()
	if err := s.members.Replace(ctx, current); err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return s.ReconcileSubvaultAssignments(ctx, current, subvaults, false)
}

// RemoveMember deletes the member; their subvault assignments cascade away
// with them. The last confirmed owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, orgID, memberID uuid.UUID) (err error) {
	start := time.Now()
	defer func() { s.instrument(opRemoveMember, start, err) }()

	member, err := s.loadMember(ctx, orgID, memberID)
	if err != nil {
		return err
	}
	if member.Role == RoleOwner {
		if err := s.ensureOwnersRemain(ctx, orgID, member.ID); err != nil {
			return err
		}
	}
	if err := s.members.Delete(ctx, member.ID); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	s.logger.WithFields(map[string]interface{}{
		"organization_id": orgID,
		"member_id":       memberID,
	}).Info("member removed")
	return nil
}
