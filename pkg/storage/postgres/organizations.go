package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

type organizationStore struct {
	db *sql.DB
}

func (s *organizationStore) GetByID(ctx context.Context, id uuid.UUID) (*orgs.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, business_name, billing_email, plan, plan_type,
		       seats, max_subvaults, extra_seats,
		       billing_customer_id, billing_subscription_id, billing_plan_id,
		       enabled, created_at, updated_at
		FROM organizations
		WHERE id = $1`, id)

	org, err := scanOrganization(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

func (s *organizationStore) Create(ctx context.Context, org *orgs.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (
			id, name, business_name, billing_email, plan, plan_type,
			seats, max_subvaults, extra_seats,
			billing_customer_id, billing_subscription_id, billing_plan_id,
			enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		org.ID, org.Name, org.BusinessName, org.BillingEmail, org.Plan, string(org.PlanType),
		org.Seats, org.MaxSubvaults, org.ExtraSeats,
		org.BillingCustomerID, org.BillingSubscriptionID, org.BillingPlanID,
		org.Enabled, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (s *organizationStore) Replace(ctx context.Context, org *orgs.Organization) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET
			name = $1, business_name = $2, billing_email = $3, plan = $4, plan_type = $5,
			seats = $6, max_subvaults = $7, extra_seats = $8,
			billing_customer_id = $9, billing_subscription_id = $10, billing_plan_id = $11,
			enabled = $12, updated_at = $13
		WHERE id = $14`,
		org.Name, org.BusinessName, org.BillingEmail, org.Plan, string(org.PlanType),
		org.Seats, org.MaxSubvaults, org.ExtraSeats,
		org.BillingCustomerID, org.BillingSubscriptionID, org.BillingPlanID,
		org.Enabled, org.UpdatedAt, org.ID)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("organization %s does not exist", org.ID)
	}
	return nil
}

// Delete removes the organization along with its members and their subvault
// assignments in one transaction.
func (s *organizationStore) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM subvault_assignments
		WHERE member_id IN (
			SELECT id FROM organization_members WHERE organization_id = $1
		)`, id); err != nil {
		return fmt.Errorf("failed to delete member assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM subvault_assignments
		WHERE subvault_id IN (
			SELECT id FROM subvaults WHERE organization_id = $1
		)`, id); err != nil {
		return fmt.Errorf("failed to delete subvault assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM organization_members WHERE organization_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM subvaults WHERE organization_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete subvaults: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM organizations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization delete: %w", err)
	}
	return nil
}

func (s *organizationStore) GetManyWithSubscription(ctx context.Context) ([]*orgs.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, business_name, billing_email, plan, plan_type,
		       seats, max_subvaults, extra_seats,
		       billing_customer_id, billing_subscription_id, billing_plan_id,
		       enabled, created_at, updated_at
		FROM organizations
		WHERE billing_subscription_id <> ''
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribed organizations: %w", err)
	}
	defer rows.Close()

	var result []*orgs.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscribed organizations: %w", err)
	}
	return result, nil
}

func scanOrganization(row rowScanner) (*orgs.Organization, error) {
	var org orgs.Organization
	var seats, maxSubvaults sql.NullInt64
	err := row.Scan(
		&org.ID, &org.Name, &org.BusinessName, &org.BillingEmail,
		&org.Plan, &org.PlanType,
		&seats, &maxSubvaults, &org.ExtraSeats,
		&org.BillingCustomerID, &org.BillingSubscriptionID, &org.BillingPlanID,
		&org.Enabled, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if seats.Valid {
		v := int(seats.Int64)
		org.Seats = &v
	}
	if maxSubvaults.Valid {
		v := int(maxSubvaults.Int64)
		org.MaxSubvaults = &v
	}
	return &org, nil
}
