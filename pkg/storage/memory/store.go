package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/plans"
)

// Store keeps every record in process behind one RWMutex. Values are deep
// copied on the way in and on the way out so callers never alias stored
// state.
type Store struct {
	mu            sync.RWMutex
	organizations map[uuid.UUID]*orgs.Organization
	members       map[uuid.UUID]*orgs.Member
	subvaults     map[uuid.UUID]*orgs.Subvault
	assignments   map[uuid.UUID]*orgs.SubvaultAssignment
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		organizations: make(map[uuid.UUID]*orgs.Organization),
		members:       make(map[uuid.UUID]*orgs.Member),
		subvaults:     make(map[uuid.UUID]*orgs.Subvault),
		assignments:   make(map[uuid.UUID]*orgs.SubvaultAssignment),
	}
}

// Organizations returns the organization repository view.
func (s *Store) Organizations() orgs.OrganizationRepository { return &organizationRepo{s} }

// Members returns the member repository view.
func (s *Store) Members() orgs.MemberRepository { return &memberRepo{s} }

// Subvaults returns the subvault repository view.
func (s *Store) Subvaults() orgs.SubvaultRepository { return &subvaultRepo{s} }

// Assignments returns the subvault assignment repository view.
func (s *Store) Assignments() orgs.SubvaultAssignmentRepository { return &assignmentRepo{s} }

// AddSubvault seeds a subvault. The subvault catalog is maintained outside
// the lifecycle core; tests and examples use this to stand in for it.
func (s *Store) AddSubvault(subvault *orgs.Subvault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subvaults[subvault.ID] = copySubvault(subvault)
}

// RemoveSubvault drops a seeded subvault. Assignments pointing at it stay
// behind, the way an external catalog deletion would leave them.
func (s *Store) RemoveSubvault(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subvaults, id)
}

type organizationRepo struct{ store *Store }

func (r *organizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*orgs.Organization, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	org, ok := r.store.organizations[id]
	if !ok {
		return nil, nil
	}
	return copyOrganization(org), nil
}

func (r *organizationRepo) Create(ctx context.Context, org *orgs.Organization) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.organizations[org.ID]; exists {
		return fmt.Errorf("organization %s already exists", org.ID)
	}
	r.store.organizations[org.ID] = copyOrganization(org)
	return nil
}

func (r *organizationRepo) Replace(ctx context.Context, org *orgs.Organization) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.organizations[org.ID]; !exists {
		return fmt.Errorf("organization %s does not exist", org.ID)
	}
	r.store.organizations[org.ID] = copyOrganization(org)
	return nil
}

func (r *organizationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.organizations, id)
	for memberID, member := range r.store.members {
		if member.OrganizationID != id {
			continue
		}
		delete(r.store.members, memberID)
		r.store.deleteAssignmentsForMemberLocked(memberID)
	}
	return nil
}

func (r *organizationRepo) GetManyWithSubscription(ctx context.Context) ([]*orgs.Organization, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*orgs.Organization, 0)
	for _, org := range r.store.organizations {
		if org.BillingSubscriptionID != "" {
			result = append(result, copyOrganization(org))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

type memberRepo struct{ store *Store }

func (r *memberRepo) GetByID(ctx context.Context, id uuid.UUID) (*orgs.Member, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	member, ok := r.store.members[id]
	if !ok {
		return nil, nil
	}
	return copyMember(member), nil
}

func (r *memberRepo) GetByOrganizationAndEmail(ctx context.Context, orgID uuid.UUID, email string) (*orgs.Member, error) {
	if email == "" {
		return nil, nil
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, member := range r.store.members {
		if member.OrganizationID == orgID && member.Email == email {
			return copyMember(member), nil
		}
	}
	return nil, nil
}

func (r *memberRepo) GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]*orgs.Member, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*orgs.Member, 0)
	for _, member := range r.store.members {
		if member.OrganizationID == orgID {
			result = append(result, copyMember(member))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *memberRepo) CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, member := range r.store.members {
		if member.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

func (r *memberRepo) CountFreeOrgAdminships(ctx context.Context, accountID uuid.UUID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, member := range r.store.members {
		if member.AccountID == nil || *member.AccountID != accountID || !member.Role.IsAdminOrOwner() {
			continue
		}
		org, ok := r.store.organizations[member.OrganizationID]
		if ok && org.PlanType == plans.PlanFree {
			count++
		}
	}
	return count, nil
}

func (r *memberRepo) Create(ctx context.Context, member *orgs.Member) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.members[member.ID]; exists {
		return fmt.Errorf("member %s already exists", member.ID)
	}
	r.store.members[member.ID] = copyMember(member)
	return nil
}

func (r *memberRepo) Replace(ctx context.Context, member *orgs.Member) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.members[member.ID]; !exists {
		return fmt.Errorf("member %s does not exist", member.ID)
	}
	r.store.members[member.ID] = copyMember(member)
	return nil
}

func (r *memberRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.members, id)
	r.store.deleteAssignmentsForMemberLocked(id)
	return nil
}

type subvaultRepo struct{ store *Store }

func (r *subvaultRepo) GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]*orgs.Subvault, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*orgs.Subvault, 0)
	for _, subvault := range r.store.subvaults {
		if subvault.OrganizationID == orgID {
			result = append(result, copySubvault(subvault))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *subvaultRepo) CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	count := 0
	for _, subvault := range r.store.subvaults {
		if subvault.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

type assignmentRepo struct{ store *Store }

func (r *assignmentRepo) GetManyByMemberID(ctx context.Context, memberID uuid.UUID) ([]*orgs.SubvaultAssignment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]*orgs.SubvaultAssignment, 0)
	for _, assignment := range r.store.assignments {
		if assignment.MemberID == memberID {
			result = append(result, copyAssignment(assignment))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *assignmentRepo) Upsert(ctx context.Context, assignment *orgs.SubvaultAssignment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.assignments[assignment.ID] = copyAssignment(assignment)
	return nil
}

func (r *assignmentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.assignments, id)
	return nil
}

// deleteAssignmentsForMemberLocked requires the write lock to be held.
func (s *Store) deleteAssignmentsForMemberLocked(memberID uuid.UUID) {
	for id, assignment := range s.assignments {
		if assignment.MemberID == memberID {
			delete(s.assignments, id)
		}
	}
}

func copyOrganization(o *orgs.Organization) *orgs.Organization {
	c := *o
	c.Seats = copyIntPtr(o.Seats)
	c.MaxSubvaults = copyIntPtr(o.MaxSubvaults)
	return &c
}

func copyMember(m *orgs.Member) *orgs.Member {
	c := *m
	if m.AccountID != nil {
		accountID := *m.AccountID
		c.AccountID = &accountID
	}
	return &c
}

func copySubvault(s *orgs.Subvault) *orgs.Subvault {
	c := *s
	return &c
}

func copyAssignment(a *orgs.SubvaultAssignment) *orgs.SubvaultAssignment {
	c := *a
	return &c
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
