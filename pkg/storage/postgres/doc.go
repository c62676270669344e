// Package postgres provides the PostgreSQL-backed implementation of the
// organization lifecycle repositories.
//
// # Overview
//
// A single Store wraps one database/sql connection pool and hands out
// repository views for organizations, members, subvaults, and subvault
// assignments. Lookups that find nothing return nil without an error.
// Deletes that fan out (an organization and its members, a member and
// their assignments) run inside a transaction so a partial cascade never
// becomes visible. EnsureSchema creates the tables for development and
// test environments; production deployments apply migrations out of band.
//
// # Usage Example
//
//	store, err := postgres.Open(cfg.Storage)
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	svc, err := orgs.NewService(orgs.ServiceConfig{
//		Organizations: store.Organizations(),
//		Members:       store.Members(),
//		Subvaults:     store.Subvaults(),
//		Assignments:   store.Assignments(),
//		// ...
//	})
//
// # Related Packages
//
//   - pkg/orgs: repository interfaces this package implements
//   - pkg/storage/memory: the in-memory counterpart used in tests
//   - pkg/config: storage settings consumed by Open
package postgres
