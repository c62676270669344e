package orgs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConfirmedOwners returns every member of the organization with role Owner
// and status Confirmed. The owner invariant guards in SaveMember and
// RemoveMember are built on it.
func (s *Service) ConfirmedOwners(ctx context.Context, orgID uuid.UUID) ([]*Member, error) {
	members, err := s.members.GetManyByOrganizationID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	owners := make([]*Member, 0, 1)
	for _, m := range members {
		if m.Role == RoleOwner && m.Status == MemberStatusConfirmed {
			owners = append(owners, m)
		}
	}
	return owners, nil
}

// CountMembers returns the organization's authoritative member count,
// invitations included. Ceiling checks re-read it at decision time.
func (s *Service) CountMembers(ctx context.Context, orgID uuid.UUID) (int, error) {
	count, err := s.members.CountByOrganizationID(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// CountSubvaults returns the organization's authoritative subvault count.
func (s *Service) CountSubvaults(ctx context.Context, orgID uuid.UUID) (int, error) {
	count, err := s.subvaults.CountByOrganizationID(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to count subvaults: %w", err)
	}
	return count, nil
}

// ensureOwnersRemain rejects an operation that would leave the organization
// without a confirmed owner. The member being demoted or removed does not
// count toward the requirement.
func (s *Service) ensureOwnersRemain(ctx context.Context, orgID, excludedMemberID uuid.UUID) error {
	owners, err := s.ConfirmedOwners(ctx, orgID)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		if owner.ID != excludedMemberID {
			return nil
		}
	}
	return badRequest("Organization must have at least one confirmed owner.")
}

// ReconcileSubvaultAssignments makes the member's stored assignments match
// the requested selection:
//
//   - Selections referencing subvaults outside the member's organization are
//     dropped silently.
//   - Assignments for subvaults kept across the reconcile retain their ID and
//     CreatedAt; only ReadOnly is updated, and only when it changed.
//   - Assignments absent from the request are deleted.
//   - Members with AccessAll hold no per-subvault rows; any existing rows are
//     removed and the requested selection is ignored.
//
// A second call with the same selection is a no-op. isNew skips the
// current-assignment read for members that cannot have rows yet.
func (s *Service) ReconcileSubvaultAssignments(ctx context.Context, member *Member, requested []SubvaultSelection, isNew bool) error {
	if member.AccessAll {
		requested = nil
	}

	subvaults, err := s.subvaults.GetManyByOrganizationID(ctx, member.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to load subvaults: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(subvaults))
	for _, sv := range subvaults {
		known[sv.ID] = true
	}

	surviving := make([]SubvaultSelection, 0, len(requested))
	seen := make(map[uuid.UUID]bool, len(requested))
	for _, sel := range requested {
		if !known[sel.SubvaultID] || seen[sel.SubvaultID] {
			continue
		}
		seen[sel.SubvaultID] = true
		surviving = append(surviving, sel)
	}

	now := time.Now().UTC()

	if isNew {
		for _, sel := range surviving {
			assignment := &SubvaultAssignment{
				ID:         uuid.New(),
				SubvaultID: sel.SubvaultID,
				MemberID:   member.ID,
				ReadOnly:   sel.ReadOnly,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := s.assignments.Upsert(ctx, assignment); err != nil {
				return fmt.Errorf("failed to create subvault assignment: %w", err)
			}
		}
		return nil
	}

	current, err := s.assignments.GetManyByMemberID(ctx, member.ID)
	if err != nil {
		return fmt.Errorf("failed to load subvault assignments: %w", err)
	}
	currentBySubvault := make(map[uuid.UUID]*SubvaultAssignment, len(current))
	for _, a := range current {
		currentBySubvault[a.SubvaultID] = a
	}

	for _, sel := range surviving {
		existing, ok := currentBySubvault[sel.SubvaultID]
		if ok {
			delete(currentBySubvault, sel.SubvaultID)
			if existing.ReadOnly == sel.ReadOnly {
				continue
			}
			existing.ReadOnly = sel.ReadOnly
			existing.UpdatedAt = now
			if err := s.assignments.Upsert(ctx, existing); err != nil {
				return fmt.Errorf("failed to update subvault assignment: %w", err)
			}
			continue
		}
		assignment := &SubvaultAssignment{
			ID:         uuid.New(),
			SubvaultID: sel.SubvaultID,
			MemberID:   member.ID,
			ReadOnly:   sel.ReadOnly,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.assignments.Upsert(ctx, assignment); err != nil {
			return fmt.Errorf("failed to create subvault assignment: %w", err)
		}
	}

	for _, leftover := range currentBySubvault {
		if err := s.assignments.Delete(ctx, leftover.ID); err != nil {
			return fmt.Errorf("failed to delete subvault assignment: %w", err)
		}
	}
	return nil
}
