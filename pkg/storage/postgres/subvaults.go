package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

type subvaultStore struct {
	db *sql.DB
}

func (s *subvaultStore) GetManyByOrganizationID(ctx context.Context, orgID uuid.UUID) ([]*orgs.Subvault, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, organization_id, name, created_at, updated_at
		FROM subvaults
		WHERE organization_id = $1
		ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subvaults: %w", err)
	}
	defer rows.Close()

	var result []*orgs.Subvault
	for rows.Next() {
		var sv orgs.Subvault
		if err := rows.Scan(&sv.ID, &sv.OrganizationID, &sv.Name, &sv.CreatedAt, &sv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subvault: %w", err)
		}
		result = append(result, &sv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subvaults: %w", err)
	}
	return result, nil
}

func (s *subvaultStore) CountByOrganizationID(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subvaults WHERE organization_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count subvaults: %w", err)
	}
	return count, nil
}
