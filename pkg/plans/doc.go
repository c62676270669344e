// Package plans defines the plan catalog: the tiers an organization can be
// on, their seat and subvault entitlements, and the remote billing prices
// paid tiers subscribe to.
//
// # Overview
//
// A Catalog is loaded once at startup, either the built-in Default or a YAML
// file via LoadFile, and is immutable afterwards. Lookups distinguish between
// purchasable plans (FindPurchasable, used by sign-up and upgrade) and all
// plans including disabled legacy tiers (Find, used when servicing an
// organization that already subscribed before a plan was retired).
//
// # Usage Example
//
//	catalog := plans.Default()
//
//	plan := catalog.FindPurchasable(plans.PlanTeams)
//	if plan == nil {
//		// unknown or no longer for sale
//	}
//
//	ceiling := plan.SeatCeiling(org.ExtraSeats)
//	if ceiling != nil && memberCount >= *ceiling {
//		// seat limit reached
//	}
//
// # Related Packages
//
//   - pkg/orgs: enforces plan entitlements during sign-up, invites, and
//     seat adjustments
//   - pkg/billing: builds subscription lines from BillingPlanID and
//     SeatPlanID
package plans
