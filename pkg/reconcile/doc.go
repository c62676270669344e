// Package reconcile detects drift between local organization records and
// the billing provider.
//
// # Overview
//
// Billing writes are compensated only during sign-up; everywhere else a
// failure after a successful provider call leaves a documented gap between
// local and remote state. The Reconciler makes those gaps visible: on a
// cron schedule it fetches every organization holding a subscription
// reference, compares it with the provider, and reports subscriptions that
// are missing, canceled under an active organization, or carrying a seat
// quantity that disagrees with the purchased extra seats. It is strictly
// read-only; resolution stays a manual decision.
//
// # Usage Example
//
//	rec, err := reconcile.NewReconciler(reconcile.Config{
//		Organizations: store.Organizations(),
//		Billing:       adapter,
//		Catalog:       catalog,
//		Schedule:      cfg.Reconcile.Schedule,
//	})
//	if err != nil {
//		return err
//	}
//	if err := rec.Start(); err != nil {
//		return err
//	}
//	defer rec.Stop()
//
// # Related Packages
//
//   - pkg/billing: the provider adapter the checks go through
//   - pkg/orgs: organization records and repositories
//   - pkg/observability: run and drift metrics
package reconcile
