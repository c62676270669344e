package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/covault/covault/pkg/config"
	"github.com/covault/covault/pkg/orgs"
)

const (
	defaultMaxConns = 25
	defaultTimeout  = 5 * time.Second
)

// Store provides PostgreSQL-backed repositories for the organization
// lifecycle. All repositories share one connection pool.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL using the given storage settings, configures
// the connection pool, and verifies connectivity before returning.
func Open(cfg config.StorageConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	maxConns := cfg.PostgresMaxConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.PostgresTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return NewStore(db), nil
}

// NewStore wraps an existing database handle. The caller keeps ownership
// of the handle; Close still closes it.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Organizations returns the organization repository.
func (s *Store) Organizations() orgs.OrganizationRepository {
	return &organizationStore{db: s.db}
}

// Members returns the member repository.
func (s *Store) Members() orgs.MemberRepository {
	return &memberStore{db: s.db}
}

// Subvaults returns the subvault repository.
func (s *Store) Subvaults() orgs.SubvaultRepository {
	return &subvaultStore{db: s.db}
}

// Assignments returns the subvault assignment repository.
func (s *Store) Assignments() orgs.SubvaultAssignmentRepository {
	return &assignmentStore{db: s.db}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for migrations and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables and indexes if they do not exist.
// Intended for development and tests; production deployments normally
// apply migrations out of band.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	business_name TEXT NOT NULL DEFAULT '',
	billing_email TEXT NOT NULL,
	plan TEXT NOT NULL,
	plan_type TEXT NOT NULL,
	seats INTEGER,
	max_subvaults INTEGER,
	extra_seats INTEGER NOT NULL DEFAULT 0,
	billing_customer_id TEXT NOT NULL DEFAULT '',
	billing_subscription_id TEXT NOT NULL DEFAULT '',
	billing_plan_id TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS organization_members (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL REFERENCES organizations (id) ON DELETE CASCADE,
	account_id UUID,
	email TEXT NOT NULL DEFAULT '',
	encrypted_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	role TEXT NOT NULL,
	access_all BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_organization_members_organization_id
	ON organization_members (organization_id);
CREATE INDEX IF NOT EXISTS idx_organization_members_account_id
	ON organization_members (account_id);

CREATE TABLE IF NOT EXISTS subvaults (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL REFERENCES organizations (id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_subvaults_organization_id
	ON subvaults (organization_id);

CREATE TABLE IF NOT EXISTS subvault_assignments (
	id UUID PRIMARY KEY,
	subvault_id UUID NOT NULL REFERENCES subvaults (id) ON DELETE CASCADE,
	member_id UUID NOT NULL REFERENCES organization_members (id) ON DELETE CASCADE,
	read_only BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (subvault_id, member_id)
);

CREATE INDEX IF NOT EXISTS idx_subvault_assignments_member_id
	ON subvault_assignments (member_id);
`
