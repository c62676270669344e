package orgs

import (
	"context"

	"github.com/google/uuid"
)

// Repository contract: single-row lookups return (nil, nil) when the row does
// not exist, GetMany* methods return empty slices, and errors are reserved
// for infrastructure failure. Reference implementations live in
// pkg/storage/memory and pkg/storage/postgres.

// OrganizationRepository persists organizations.
type OrganizationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	Create(ctx context.Context, org *Organization) error
	Replace(ctx context.Context, org *Organization) error
	// Delete removes the organization together with its members and their
	// subvault assignments.
	Delete(ctx context.Context, id uuid.UUID) error
	// GetManyWithSubscription returns every organization holding a remote
	// subscription reference. The drift reconciler feeds from it.
	GetManyWithSubscription(ctx context.Context) ([]*Organization, error)
}

// MemberRepository persists organization members.
type MemberRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	// GetByOrganizationAndEmail matches pending invitations by invitation
	// email. Accepted and confirmed members carry no email on record and
	// are never returned.
	GetByOrganizationAndEmail(ctx context.Context, orgID uuid.UUID, email string) (*Member, error)
	GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]*Member, error)
	// CountByOrganizationID counts members in every status; seat ceilings
	// apply to invitations as much as to confirmed members.
	CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int, error)
	// CountFreeOrgAdminships counts the admin-or-owner memberships the
	// account already holds in free-plan organizations.
	CountFreeOrgAdminships(ctx context.Context, accountID uuid.UUID) (int, error)
	Create(ctx context.Context, member *Member) error
	Replace(ctx context.Context, member *Member) error
	// Delete removes the member and cascades their subvault assignments.
	Delete(ctx context.Context, id uuid.UUID) error
}

// SubvaultRepository reads the subvault catalog maintained outside this
// library.
type SubvaultRepository interface {
	GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]*Subvault, error)
	CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int, error)
}

// SubvaultAssignmentRepository persists member-to-subvault grants.
type SubvaultAssignmentRepository interface {
	GetManyByMemberID(ctx context.Context, memberID uuid.UUID) ([]*SubvaultAssignment, error)
	// Upsert inserts the assignment or updates the existing row with the
	// same ID.
	Upsert(ctx context.Context, assignment *SubvaultAssignment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// InviteMailer delivers invitation emails. Implementations live in pkg/mail.
// Delivery is fire-and-forget: failures are logged and counted by the
// orchestrator, never surfaced to the inviting caller.
type InviteMailer interface {
	SendOrganizationInvite(ctx context.Context, orgName string, member *Member, token string) error
}
