package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
	"github.com/covault/covault/pkg/plans"
)

type memberStore struct {
	db *sql.DB
}

func (s *memberStore) GetByID(ctx context.Context, id uuid.UUID) (*orgs.Member, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, account_id, email, encrypted_key,
		       status, role, access_all, created_at, updated_at
		FROM organization_members
		WHERE id = $1`, id)

	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

func (s *memberStore) GetByOrganizationAndEmail(ctx context.Context, orgID uuid.UUID, email string) (*orgs.Member, error) {
	if email == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, account_id, email, encrypted_key,
		       status, role, access_all, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1 AND email = $2`, orgID, email)

	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by email: %w", err)
	}
	return member, nil
}

func (s *memberStore) GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]*orgs.Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, account_id, email, encrypted_key,
		       status, role, access_all, created_at, updated_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var result []*orgs.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		result = append(result, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return result, nil
}

func (s *memberStore) CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM organization_members WHERE organization_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// CountFreeOrgAdminships counts admin or owner memberships the account holds
// across free-plan organizations.
func (s *memberStore) CountFreeOrgAdminships(ctx context.Context, accountID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.account_id = $1
		  AND m.role IN ($2, $3)
		  AND o.plan_type = $4`,
		accountID, string(orgs.RoleOwner), string(orgs.RoleAdmin), string(plans.PlanFree)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count free organization adminships: %w", err)
	}
	return count, nil
}

func (s *memberStore) Create(ctx context.Context, member *orgs.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organization_members (
			id, organization_id, account_id, email, encrypted_key,
			status, role, access_all, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		member.ID, member.OrganizationID, nullableUUID(member.AccountID),
		member.Email, member.Key, string(member.Status), string(member.Role),
		member.AccessAll, member.CreatedAt, member.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (s *memberStore) Replace(ctx context.Context, member *orgs.Member) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE organization_members SET
			account_id = $1, email = $2, encrypted_key = $3,
			status = $4, role = $5, access_all = $6, updated_at = $7
		WHERE id = $8`,
		nullableUUID(member.AccountID), member.Email, member.Key,
		string(member.Status), string(member.Role), member.AccessAll,
		member.UpdatedAt, member.ID)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %s does not exist", member.ID)
	}
	return nil
}

// Delete removes the member and their subvault assignments in one
// transaction.
func (s *memberStore) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM subvault_assignments WHERE member_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete member assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM organization_members WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit member delete: %w", err)
	}
	return nil
}

func scanMember(row rowScanner) (*orgs.Member, error) {
	var member orgs.Member
	var accountID uuid.NullUUID
	err := row.Scan(
		&member.ID, &member.OrganizationID, &accountID,
		&member.Email, &member.Key, &member.Status, &member.Role,
		&member.AccessAll, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if accountID.Valid {
		v := accountID.UUID
		member.AccountID = &v
	}
	return &member, nil
}

func nullableUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
