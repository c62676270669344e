// Package observability provides structured logging, Prometheus metrics, and health checks.
//
// # Overview
//
// This package centralizes the observability infrastructure shared by the
// organization lifecycle core: leveled JSON logging, operation and billing
// provider metrics, and dependency health probes.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("org_id", orgID).Info("organization created")
//
// Error logging:
//
//	logger.WithError(err).WithField("member_id", memberID).Error("invite mail failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.OperationsTotal.WithLabelValues("sign_up", "ok").Inc()
//	metrics.ProviderRequestDuration.WithLabelValues("create_subscription").Observe(0.123)
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient, provider)
//	status := checker.Check(ctx)
//	fmt.Printf("Status: %s\n", status.Status)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/orgs: Operation metrics producer
//   - pkg/billing: Provider metrics producer
package observability
