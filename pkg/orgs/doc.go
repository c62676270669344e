// Package orgs is the organization lifecycle orchestrator: sign-up, plan
// upgrades, seat adjustments, payment-method replacement, subscription
// cancellation, and the member invite / accept / confirm workflow.
//
// # Overview
//
// The Service couples three independently mutable resources: the
// organization record with its plan entitlements, the member records with
// their forward-only status lifecycle, and the per-member subvault
// assignments. It keeps them consistent with a remote billing subscription
// that can fail independently of local storage.
//
// Creation paths are remote-first: sign-up creates the billing customer and
// subscription before any local write, and unwinds the remote state when a
// local write fails afterwards. No other operation compensates; a local
// write failure after a remote success is surfaced to the caller, logged,
// and counted as a billing gap for manual reconciliation (pkg/reconcile
// reports the resulting drift).
//
// Invariants the Service enforces on every mutation:
//
//   - an organization always retains at least one member with role Owner
//     and status Confirmed
//   - a member's status only moves forward: Invited, Accepted, Confirmed
//   - seat and subvault ceilings are re-checked against authoritative
//     repository counts immediately before the mutating write
//   - an account can hold admin-or-owner membership in at most one
//     free-plan organization
//
// # Usage Example
//
//	service, err := orgs.NewService(orgs.ServiceConfig{
//		Organizations: store.Organizations(),
//		Members:       store.Members(),
//		Subvaults:     store.Subvaults(),
//		Assignments:   store.Assignments(),
//		Billing:       billing.NewAdapter(provider, logger, metrics),
//		Catalog:       plans.Default(),
//		Tokens:        invites.NewTokenCodec(protector),
//		Mailer:        mail.NewLogSender(logger),
//	})
//	if err != nil {
//		return err
//	}
//
//	org, owner, err := service.SignUp(ctx, orgs.SignupParams{
//		Name:           "Acme Corp",
//		BillingEmail:   "billing@acme.test",
//		PlanType:       plans.PlanTeams,
//		ExtraSeats:     3,
//		PaymentToken:   "tok_visa",
//		OwnerAccountID: ownerAccount,
//		OwnerKey:       encryptedOrgKey,
//	})
//
// # Related Packages
//
//   - pkg/billing: remote provider adapter the orchestrator drives
//   - pkg/plans: the entitlement catalog
//   - pkg/invites: invitation token sealing and validation
//   - pkg/storage/memory, pkg/storage/postgres: repository implementations
//   - pkg/mail: InviteMailer implementations
package orgs
