// Package memory provides an in-memory implementation of the organization
// lifecycle repositories.
//
// # Overview
//
// The store holds organizations, members, subvaults, and subvault
// assignments in maps behind a single RWMutex. Every value is deep copied
// at the boundary, so mutations on a returned record never leak back into
// the store. Semantics mirror the persistent repositories: lookups that
// find nothing return nil without an error, deletes are idempotent, and
// removing an organization or member cascades to its dependents.
//
// # Usage Example
//
//	store := memory.NewStore()
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
//   - pkg/storage/postgres: the persistent counterpart
package memory
