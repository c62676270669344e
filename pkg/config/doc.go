// Package config provides library configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Billing provider settings:
//
//	COVAULT_BILLING_API_BASE="https://api.stripe.com"
//	COVAULT_BILLING_API_KEY="sk_live_..."
//	COVAULT_BILLING_TIMEOUT="30s"
//
// Invitation settings:
//
//	COVAULT_INVITE_TOKEN_KEY="<32 bytes, hex or base64>"
//	COVAULT_INVITE_LINK_BASE_URL="https://vault.covault.com"
//	COVAULT_INVITE_MAIL_TIMEOUT="10s"
//
// Storage and cache settings:
//
//	COVAULT_POSTGRES_URL="postgres://localhost/covault"
//	COVAULT_POSTGRES_MAX_CONNS="25"
//	COVAULT_REDIS_URL="localhost:6379"
//	COVAULT_CACHE_ENABLED="true"
//	COVAULT_CACHE_TTL="5m"
//
// Mail settings (empty SMTP host selects the logging sender):
//
//	COVAULT_SMTP_HOST="smtp.mailgun.org"
//	COVAULT_SMTP_PORT="587"
//	COVAULT_MAIL_FROM="no-reply@covault.com"
//
// Reconciler settings:
//
//	COVAULT_RECONCILE_ENABLED="false"
//	COVAULT_RECONCILE_SCHEDULE="0 */6 * * *"
//
// Observability settings:
//
//	COVAULT_LOG_LEVEL="info"  # debug, info, warn, error
//	COVAULT_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Billing: %s\n", cfg.Billing.APIBase)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/invites: Consumes the token key
//   - pkg/billing: Consumes billing provider settings
//   - pkg/observability: Consumes observability configuration
package config
