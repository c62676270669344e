package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/covault/covault/pkg/invites"
	"github.com/covault/covault/pkg/observability"
)

// Config holds all library configuration
type Config struct {
	// Billing provider configuration
	Billing BillingConfig

	// Invitation configuration
	Invites InviteConfig

	// Storage configuration
	Storage StorageConfig

	// Mail configuration
	Mail MailConfig

	// Reconciler configuration
	Reconcile ReconcileConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// BillingConfig holds remote billing provider settings
type BillingConfig struct {
	APIBase        string
	APIKey         string
	RequestTimeout time.Duration
}

// InviteConfig holds invitation token and dispatch settings
type InviteConfig struct {
	// TokenKey is the 32-byte sealing key, hex or base64 encoded
	TokenKey string

	// LinkBaseURL is the web vault URL invitation links point at
	LinkBaseURL string

	// MailTimeout bounds the fire-and-forget mail dispatch
	MailTimeout time.Duration
}

// StorageConfig holds organization store and cache settings
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresTimeout  time.Duration

	RedisURL      string
	RedisPassword string
	RedisDB       int

	CacheEnabled bool
	CacheTTL     time.Duration
	L1CacheSize  int
}

// MailConfig holds SMTP settings. An empty host selects the logging sender.
type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	FromName     string
}

// ReconcileConfig holds subscription drift reconciler settings
type ReconcileConfig struct {
	Enabled  bool
	Schedule string
	Workers  int
	Timeout  time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Billing:       loadBillingConfig(),
		Invites:       loadInviteConfig(),
		Storage:       loadStorageConfig(),
		Mail:          loadMailConfig(),
		Reconcile:     loadReconcileConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadBillingConfig loads billing provider configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		APIBase:        getEnv("COVAULT_BILLING_API_BASE", "https://api.stripe.com"),
		APIKey:         getEnv("COVAULT_BILLING_API_KEY", ""),
		RequestTimeout: getEnvDuration("COVAULT_BILLING_TIMEOUT", 30*time.Second),
	}
}

// loadInviteConfig loads invitation configuration from environment
func loadInviteConfig() InviteConfig {
	return InviteConfig{
		TokenKey:    getEnv("COVAULT_INVITE_TOKEN_KEY", ""),
		LinkBaseURL: getEnv("COVAULT_INVITE_LINK_BASE_URL", "https://vault.covault.com"),
		MailTimeout: getEnvDuration("COVAULT_INVITE_MAIL_TIMEOUT", 10*time.Second),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() StorageConfig {
	return StorageConfig{
		PostgresURL:      getEnv("COVAULT_POSTGRES_URL", ""),
		PostgresMaxConns: getEnvInt("COVAULT_POSTGRES_MAX_CONNS", 25),
		PostgresTimeout:  getEnvDuration("COVAULT_POSTGRES_TIMEOUT", 5*time.Second),
		RedisURL:         getEnv("COVAULT_REDIS_URL", ""),
		RedisPassword:    getEnv("COVAULT_REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("COVAULT_REDIS_DB", 0),
		CacheEnabled:     getEnvBool("COVAULT_CACHE_ENABLED", true),
		CacheTTL:         getEnvDuration("COVAULT_CACHE_TTL", 5*time.Minute),
		L1CacheSize:      getEnvInt("COVAULT_L1_CACHE_SIZE", 1024),
	}
}

// loadMailConfig loads SMTP configuration from environment
func loadMailConfig() MailConfig {
	return MailConfig{
		SMTPHost:     getEnv("COVAULT_SMTP_HOST", ""),
		SMTPPort:     getEnvInt("COVAULT_SMTP_PORT", 587),
		SMTPUsername: getEnv("COVAULT_SMTP_USERNAME", ""),
		SMTPPassword: getEnv("COVAULT_SMTP_PASSWORD", ""),
		FromAddress:  getEnv("COVAULT_MAIL_FROM", "no-reply@covault.com"),
		FromName:     getEnv("COVAULT_MAIL_FROM_NAME", "Covault"),
	}
}

// loadReconcileConfig loads reconciler configuration from environment
func loadReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Enabled:  getEnvBool("COVAULT_RECONCILE_ENABLED", false),
		Schedule: getEnv("COVAULT_RECONCILE_SCHEDULE", "0 */6 * * *"),
		Workers:  getEnvInt("COVAULT_RECONCILE_WORKERS", 4),
		Timeout:  getEnvDuration("COVAULT_RECONCILE_TIMEOUT", 30*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLevel(getEnv("COVAULT_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("COVAULT_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Billing.APIBase == "" {
		return fmt.Errorf("billing API base URL is required")
	}
	if c.Billing.RequestTimeout <= 0 {
		return fmt.Errorf("billing request timeout must be positive")
	}

	if c.Invites.TokenKey != "" {
		if _, err := invites.ParseKey(c.Invites.TokenKey); err != nil {
			return fmt.Errorf("invalid invite token key: %w", err)
		}
	}
	if c.Invites.LinkBaseURL == "" {
		return fmt.Errorf("invite link base URL is required")
	}

	if c.Mail.SMTPHost != "" {
		if c.Mail.SMTPPort <= 0 || c.Mail.SMTPPort > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.Mail.SMTPPort)
		}
		if c.Mail.FromAddress == "" {
			return fmt.Errorf("mail from address is required when SMTP is configured")
		}
	}

	if c.Reconcile.Enabled {
		if c.Reconcile.Schedule == "" {
			return fmt.Errorf("reconcile schedule is required when the reconciler is enabled")
		}
		if c.Reconcile.Workers <= 0 {
			return fmt.Errorf("reconcile workers must be positive")
		}
	}

	if c.Storage.CacheEnabled && c.Storage.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive when caching is enabled")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
