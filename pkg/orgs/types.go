package orgs

import (
	"time"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/plans"
)

// MemberStatus tracks a member's progress through the invitation lifecycle.
// Transitions only ever move forward: Invited -> Accepted -> Confirmed.
// Deletion is possible from any status, subject to the owner invariant.
type MemberStatus string

const (
	MemberStatusInvited   MemberStatus = "invited"
	MemberStatusAccepted  MemberStatus = "accepted"
	MemberStatusConfirmed MemberStatus = "confirmed"
)

// MemberRole determines what a member can do inside the organization.
type MemberRole string

const (
	RoleOwner MemberRole = "owner"
	RoleAdmin MemberRole = "admin"
	RoleUser  MemberRole = "user"
)

// Valid reports whether the role is one of the known roles.
func (r MemberRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// IsAdminOrOwner reports whether the role carries organization-wide
// administrative rights. The free-plan single-organization rule applies
// to these roles only.
func (r MemberRole) IsAdminOrOwner() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Organization is the tenant root. The billing fields reference remote
// provider objects and stay empty until the organization is billable.
type Organization struct {
	ID           uuid.UUID
	Name         string
	BusinessName string
	BillingEmail string

	// Plan is the display name of the current plan; PlanType resolves it in
	// the catalog. Seats and MaxSubvaults are the derived ceilings, nil
	// meaning unlimited.
	Plan         string
	PlanType     plans.PlanType
	Seats        *int
	MaxSubvaults *int
	ExtraSeats   int

	BillingCustomerID     string
	BillingSubscriptionID string
	BillingPlanID         string

	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member is one account's membership in an organization. AccountID is nil and
// Email set while the invitation is pending; accepting binds the account and
// clears the email, confirming stores the organization key material.
type Member struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	AccountID      *uuid.UUID
	Email          string
	Key            string
	Status         MemberStatus
	Role           MemberRole
	AccessAll      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subvault is a named grouping of vault items scoped to an organization. The
// subvault catalog is maintained outside this library; it is read here only
// to scope member assignments.
type Subvault struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubvaultAssignment grants one member access to one subvault. Assignment ids
// are stable: reconciliation updates kept rows in place instead of replacing
// them.
type SubvaultAssignment struct {
	ID         uuid.UUID
	SubvaultID uuid.UUID
	MemberID   uuid.UUID
	ReadOnly   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SubvaultSelection is the caller-side shape of a requested assignment.
type SubvaultSelection struct {
	SubvaultID uuid.UUID
	ReadOnly   bool
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
