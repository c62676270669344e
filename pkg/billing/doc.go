// Package billing couples organizations to a remote card-payment provider:
// customers, payment sources, plan subscriptions, and charge history.
//
// # Overview
//
// The Provider interface is the low-level port to the remote API.
// RESTProvider implements it against a Stripe-compatible HTTP API and
// FakeProvider implements it in memory for tests and local development.
//
// Adapter layers the lifecycle's billing operations on top of a Provider:
//
//   - EnsureCustomer resolves or creates the provider customer and tells the
//     caller when the stored reference must be refreshed
//   - ReplacePaymentSource attaches the new default card before removing the
//     old one, so the customer is never left without a payment source
//   - CreateSubscription and the seat/plan updates build line items from the
//     plan catalog: one base line at quantity 1 plus a seat line only when
//     extra seats were purchased
//   - CancelSubscription checks current state first and refuses to cancel an
//     already-canceled subscription, then verifies the provider actually
//     applied the cancellation
//   - GetBillingSnapshot fans out to payment source, subscription, and the
//     20 most recent charges concurrently
//
// SnapshotCache puts an in-process LRU and a shared Redis tier in front of
// snapshot reads.
//
// # Usage Example
//
//	provider := billing.NewRESTProvider(cfg.Billing.APIBase, cfg.Billing.APIKey, cfg.Billing.RequestTimeout)
//	adapter := billing.NewAdapter(provider, logger, metrics)
//
//	customerID, created, err := adapter.EnsureCustomer(ctx, billing.EnsureCustomerParams{
//		CustomerID: org.BillingCustomerID,
//		Email:      org.BillingEmail,
//		CardToken:  cardToken,
//	})
//	if created {
//		org.BillingCustomerID = customerID
//	}
//
//	sub, err := adapter.CreateSubscription(ctx, customerID, plan, extraSeats)
//
// # Related Packages
//
//   - pkg/orgs: drives these operations from the organization lifecycle
//   - pkg/plans: supplies the billing price IDs subscriptions are built from
//   - pkg/reconcile: audits local state against provider state
package billing
