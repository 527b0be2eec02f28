// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler/worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReconcileInterval() time.Duration
	GetReminderInterval() time.Duration
	GetCampaignSweepInterval() time.Duration
}

// EmailConfig provides settings for the SMTP channel sender.
type EmailConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// WhatsAppConfig provides settings for the WhatsApp channel sender.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// PaymentProviderConfig provides settings for the payment provider client.
type PaymentProviderConfig interface {
	GetPaymentProviderName() string
	GetPaymentProviderURL() string
	GetPaymentProviderKey() string
	IsPaymentProviderEnabled() bool
}

// CampaignConfig provides defaults for campaign dispatch.
type CampaignConfig interface {
	GetCampaignRunLimit() int
	GetCampaignMaxRunsPerSweep() int
	GetCampaignSendConcurrency() int
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	JWTAccessSecret         string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	ReconcileInterval       time.Duration
	ReminderInterval        time.Duration
	CampaignSweepInterval   time.Duration
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	WhatsAppURL             string
	WhatsAppKey             string
	WhatsAppDeviceID        string
	PaymentProviderName     string
	PaymentProviderURL      string
	PaymentProviderKey      string
	CampaignRunLimit        int
	CampaignMaxRunsPerSweep int
	CampaignSendConcurrency int
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                     { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool               { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string               { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int                { return c.AsynqConcurrency }
func (c *Config) GetReconcileInterval() time.Duration     { return c.ReconcileInterval }
func (c *Config) GetReminderInterval() time.Duration      { return c.ReminderInterval }
func (c *Config) GetCampaignSweepInterval() time.Duration { return c.CampaignSweepInterval }

// EmailConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// PaymentProviderConfig implementation
func (c *Config) GetPaymentProviderName() string { return c.PaymentProviderName }
func (c *Config) GetPaymentProviderURL() string  { return c.PaymentProviderURL }
func (c *Config) GetPaymentProviderKey() string  { return c.PaymentProviderKey }
func (c *Config) IsPaymentProviderEnabled() bool { return c.PaymentProviderURL != "" }

// CampaignConfig implementation
func (c *Config) GetCampaignRunLimit() int        { return c.CampaignRunLimit }
func (c *Config) GetCampaignMaxRunsPerSweep() int { return c.CampaignMaxRunsPerSweep }
func (c *Config) GetCampaignSendConcurrency() int { return c.CampaignSendConcurrency }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		JWTAccessSecret:         getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		ReconcileInterval:       mustDuration(getEnv("PAYMENT_RECONCILE_INTERVAL", "5m")),
		ReminderInterval:        mustDuration(getEnv("REMINDER_SWEEP_INTERVAL", "5m")),
		CampaignSweepInterval:   mustDuration(getEnv("CAMPAIGN_SWEEP_INTERVAL", "10m")),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "CoachFlow"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:             getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:             getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:        getEnv("WHATSAPP_DEVICE_ID", ""),
		PaymentProviderName:     getEnv("PAYMENT_PROVIDER", "yookassa"),
		PaymentProviderURL:      getEnv("PAYMENT_PROVIDER_URL", ""),
		PaymentProviderKey:      getEnv("PAYMENT_PROVIDER_KEY", ""),
		CampaignRunLimit:        mustInt(getEnv("CAMPAIGN_RUN_LIMIT", "100")),
		CampaignMaxRunsPerSweep: mustInt(getEnv("CAMPAIGN_MAX_RUNS_PER_SWEEP", "5")),
		CampaignSendConcurrency: mustInt(getEnv("CAMPAIGN_SEND_CONCURRENCY", "8")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.ReconcileInterval <= 0 || cfg.ReminderInterval <= 0 || cfg.CampaignSweepInterval <= 0 {
		return nil, fmt.Errorf("sweep intervals must be positive durations")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
