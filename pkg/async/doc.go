// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and error collection.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 10*time.Second, "invite mail", func(ctx context.Context) error {
//		return mailer.SendOrganizationInvite(ctx, orgName, member, token)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, 4, "drift check", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return checkSubscription(ctx, orgID)
//	})
//
// Batch: Concurrent batch processing
//
//	errs := async.Batch(ctx, orgs, 4, "drift check", 30*time.Second,
//		func(ctx context.Context, org *Org) error {
//			return checkSubscription(ctx, org)
//		})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
// Structured Logging: panics and errors are logged via the logger carried
// by the context (observability.WithLogger)
// Error Collection: Non-blocking error channels
// Graceful Shutdown: Worker draining
//
// # Use Cases
//
// Invitation mail dispatch, subscription drift checks
//
// # Related Packages
//
//   - pkg/orgs: Uses SafeGo for invite mail
//   - pkg/reconcile: Uses Batch for drift checks
package async
