package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

type assignmentStore struct {
	db *sql.DB
}

func (s *assignmentStore) GetManyByMemberID(ctx context.Context, memberID uuid.UUID) ([]*orgs.SubvaultAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subvault_id, member_id, read_only, created_at, updated_at
		FROM subvault_assignments
		WHERE member_id = $1
		ORDER BY created_at, id`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var result []*orgs.SubvaultAssignment
	for rows.Next() {
		var a orgs.SubvaultAssignment
		if err := rows.Scan(&a.ID, &a.SubvaultID, &a.MemberID, &a.ReadOnly, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return result, nil
}

// Upsert inserts the assignment or, when the row already exists, updates its
// access flag in place.
func (s *assignmentStore) Upsert(ctx context.Context, assignment *orgs.SubvaultAssignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subvault_assignments (
			id, subvault_id, member_id, read_only, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			read_only = EXCLUDED.read_only,
			updated_at = EXCLUDED.updated_at`,
		assignment.ID, assignment.SubvaultID, assignment.MemberID,
		assignment.ReadOnly, assignment.CreatedAt, assignment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert assignment: %w", err)
	}
	return nil
}

func (s *assignmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM subvault_assignments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	return nil
}
