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

// RedisConfig provides Redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// JWTConfig provides operator token validation settings for middleware.
type JWTConfig interface {
	GetAdminTokenSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetWebhookRateLimit() float64
	GetWebhookRateBurst() int
}

// ConversationConfig provides session and handoff settings.
type ConversationConfig interface {
	GetSessionInactivityTimeout() time.Duration
	GetIdempotencyTTL() time.Duration
	GetDefaultPhoneRegion() string
	GetHumanFallbackPhone() string
	GetWorkerConcurrency() int
	GetTypebotWelcomeMessage() string
}

// WebhookConfig provides provider authentication settings. Empty values
// disable the corresponding check.
type WebhookConfig interface {
	GetWebhookToken() string
	GetCalendlySigningKey() string
}

// WhatsAppConfig provides settings for the Evolution API transport.
type WhatsAppConfig interface {
	GetEvolutionAPIURL() string
	GetEvolutionAPIKey() string
	GetEvolutionInstance() string
}

// CalendlyConfig provides settings for booking link creation.
type CalendlyConfig interface {
	GetCalendlyAPIToken() string
	GetCalendlyEventTypeURI() string
	GetCalendlySchedulingURL() string
}

// CatalogConfig provides settings for the Baserow property catalog.
type CatalogConfig interface {
	GetBaserowAPIURL() string
	GetBaserowAPIToken() string
	GetBaserowPropertiesTableID() string
	GetCatalogCacheTTL() time.Duration
}

// LLMConfig provides settings for the reply generation model.
type LLMConfig interface {
	GetMoonshotAPIKey() string
	GetLLMModel() string
	GetLLMTimeout() time.Duration
}

// MinIOConfig provides settings for property image storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketPropertyImages() string
	GetPresignedURLTTL() time.Duration
	IsMinIOEnabled() bool
}

// SMTPConfig provides settings for broker notification emails.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromAddress() string
	GetEmailFromName() string
	GetBrokerNotifyEmail() string
	IsSMTPEnabled() bool
}

// BrokerConfig provides settings for the AMQP event forwarder.
type BrokerConfig interface {
	GetAMQPURL() string
	GetAMQPExchange() string
}

// SchedulerConfig provides settings for the reminder worker and queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReminderPollInterval() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	RedisURL                 string
	RedisTLSInsecure         bool
	AdminTokenSecret         string
	CORSAllowAll             bool
	CORSOrigins              []string
	WebhookRateLimit         float64
	WebhookRateBurst         int
	SessionInactivityTimeout time.Duration
	IdempotencyTTL           time.Duration
	DefaultPhoneRegion       string
	HumanFallbackPhone       string
	WorkerConcurrency        int
	TypebotWelcomeMessage    string
	WebhookToken             string
	CalendlySigningKey       string
	EvolutionAPIURL          string
	EvolutionAPIKey          string
	EvolutionInstance        string
	CalendlyAPIToken         string
	CalendlyEventTypeURI     string
	CalendlySchedulingURL    string
	BaserowAPIURL            string
	BaserowAPIToken          string
	BaserowPropertiesTableID string
	CatalogCacheTTL          time.Duration
	MoonshotAPIKey           string
	LLMModel                 string
	LLMTimeout               time.Duration
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinioBucketPropertyImgs  string
	PresignedURLTTL          time.Duration
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromAddress         string
	EmailFromName            string
	BrokerNotifyEmail        string
	AMQPURL                  string
	AMQPExchange             string
	AsynqQueueName           string
	AsynqConcurrency         int
	ReminderPollInterval     time.Duration
	TuningFile               string
}

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }
func (c *Config) GetRedisURL() string { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAdminTokenSecret() string { return c.AdminTokenSecret }
func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetWebhookRateLimit() float64 { return c.WebhookRateLimit }
func (c *Config) GetWebhookRateBurst() int { return c.WebhookRateBurst }
func (c *Config) GetIdempotencyTTL() time.Duration { return c.IdempotencyTTL }
func (c *Config) GetDefaultPhoneRegion() string { return c.DefaultPhoneRegion }
func (c *Config) GetHumanFallbackPhone() string { return c.HumanFallbackPhone }
func (c *Config) GetWorkerConcurrency() int { return c.WorkerConcurrency }
func (c *Config) GetTypebotWelcomeMessage() string {
	return c.TypebotWelcomeMessage
}
func (c *Config) GetSessionInactivityTimeout() time.Duration {
	return c.SessionInactivityTimeout
}

func (c *Config) GetWebhookToken() string { return c.WebhookToken }
func (c *Config) GetCalendlySigningKey() string {
	return c.CalendlySigningKey
}

func (c *Config) GetEvolutionAPIURL() string { return c.EvolutionAPIURL }
func (c *Config) GetEvolutionAPIKey() string { return c.EvolutionAPIKey }
func (c *Config) GetEvolutionInstance() string { return c.EvolutionInstance }
func (c *Config) GetCalendlyAPIToken() string { return c.CalendlyAPIToken }
func (c *Config) GetCalendlyEventTypeURI() string {
	return c.CalendlyEventTypeURI
}
func (c *Config) GetCalendlySchedulingURL() string {
	return c.CalendlySchedulingURL
}

func (c *Config) GetBaserowAPIURL() string { return c.BaserowAPIURL }
func (c *Config) GetBaserowAPIToken() string { return c.BaserowAPIToken }
func (c *Config) GetBaserowPropertiesTableID() string {
	return c.BaserowPropertiesTableID
}
func (c *Config) GetCatalogCacheTTL() time.Duration { return c.CatalogCacheTTL }

func (c *Config) GetMoonshotAPIKey() string { return c.MoonshotAPIKey }
func (c *Config) GetLLMModel() string { return c.LLMModel }
func (c *Config) GetLLMTimeout() time.Duration { return c.LLMTimeout }

func (c *Config) GetMinIOEndpoint() string { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketPropertyImages() string {
	return c.MinioBucketPropertyImgs
}
func (c *Config) GetPresignedURLTTL() time.Duration { return c.PresignedURLTTL }

// IsMinIOEnabled reports whether property images are served from MinIO.
func (c *Config) IsMinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

func (c *Config) GetSMTPHost() string { return c.SMTPHost }
func (c *Config) GetSMTPPort() int { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string { return c.SMTPPassword }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetEmailFromName() string { return c.EmailFromName }
func (c *Config) GetBrokerNotifyEmail() string {
	return c.BrokerNotifyEmail
}

// IsSMTPEnabled reports whether broker notifications can be sent.
func (c *Config) IsSMTPEnabled() bool {
	return c.SMTPHost != "" && c.BrokerNotifyEmail != "" && c.EmailFromAddress != ""
}

func (c *Config) GetAMQPURL() string { return c.AMQPURL }
func (c *Config) GetAMQPExchange() string { return c.AMQPExchange }

func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int { return c.AsynqConcurrency }
func (c *Config) GetReminderPollInterval() time.Duration {
	return c.ReminderPollInterval
}

// Load reads configuration from the environment, optionally seeded by a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ALLOW_ORIGINS", "*"))

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AdminTokenSecret:         getEnv("ADMIN_API_TOKEN_SECRET", ""),
		CORSAllowAll:             containsWildcard(corsOrigins),
		CORSOrigins:              corsOrigins,
		WebhookRateLimit:         mustFloat(getEnv("WEBHOOK_RATE_LIMIT", "20")),
		WebhookRateBurst:         int(mustInt64(getEnv("WEBHOOK_RATE_BURST", "40"))),
		SessionInactivityTimeout: mustDuration(getEnv("SESSION_INACTIVITY_TIMEOUT", "24h")),
		IdempotencyTTL:           mustDuration(getEnv("IDEMPOTENCY_TTL", "72h")),
		DefaultPhoneRegion:       strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "BR")),
		HumanFallbackPhone:       getEnv("HUMAN_FALLBACK_PHONE", ""),
		WorkerConcurrency:        int(mustInt64(getEnv("WORKER_CONCURRENCY", "16"))),
		TypebotWelcomeMessage:    getEnv("TYPEBOT_WELCOME_MESSAGE", ""),
		WebhookToken:             getEnv("WEBHOOK_TOKEN", ""),
		CalendlySigningKey:       getEnv("CALENDLY_WEBHOOK_SIGNING_KEY", ""),
		EvolutionAPIURL:          strings.TrimRight(getEnv("EVOLUTION_API_URL", ""), "/"),
		EvolutionAPIKey:          getEnv("EVOLUTION_API_KEY", ""),
		EvolutionInstance:        getEnv("EVOLUTION_INSTANCE", ""),
		CalendlyAPIToken:         getEnv("CALENDLY_API_TOKEN", ""),
		CalendlyEventTypeURI:     getEnv("CALENDLY_EVENT_TYPE_URI", ""),
		CalendlySchedulingURL:    getEnv("CALENDLY_SCHEDULING_URL", ""),
		BaserowAPIURL:            strings.TrimRight(getEnv("BASEROW_API_URL", "https://api.baserow.io"), "/"),
		BaserowAPIToken:          getEnv("BASEROW_API_TOKEN", ""),
		BaserowPropertiesTableID: getEnv("BASEROW_PROPERTIES_TABLE_ID", ""),
		CatalogCacheTTL:          mustDuration(getEnv("CATALOG_CACHE_TTL", "5m")),
		MoonshotAPIKey:           getEnv("MOONSHOT_API_KEY", ""),
		LLMModel:                 getEnv("LLM_MODEL", "kimi-k2-turbo-preview"),
		LLMTimeout:               mustDuration(getEnv("LLM_TIMEOUT", "30s")),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketPropertyImgs:  getEnv("MINIO_BUCKET_PROPERTY_IMAGES", "property-images"),
		PresignedURLTTL:          mustDuration(getEnv("MINIO_PRESIGNED_URL_TTL", "1h")),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Assistente de Vendas"),
		BrokerNotifyEmail:        getEnv("BROKER_NOTIFY_EMAIL", ""),
		AMQPURL:                  getEnv("AMQP_URL", ""),
		AMQPExchange:             getEnv("AMQP_EXCHANGE", "sales.events"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:         int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "10"))),
		ReminderPollInterval:     mustDuration(getEnv("REMINDER_POLL_INTERVAL", "30s")),
		TuningFile:               getEnv("TUNING_FILE", "configs/tuning.yaml"),
	}

	if cfg.SessionInactivityTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_INACTIVITY_TIMEOUT must be a positive duration")
	}
	if cfg.IdempotencyTTL <= 0 {
		return nil, fmt.Errorf("IDEMPOTENCY_TTL must be a positive duration")
	}
	if cfg.WorkerConcurrency < 1 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if cfg.CalendlyAPIToken != "" && cfg.CalendlyEventTypeURI == "" {
		return nil, fmt.Errorf("CALENDLY_EVENT_TYPE_URI is required when CALENDLY_API_TOKEN is set")
	}
	if cfg.BaserowAPIToken != "" && cfg.BaserowPropertiesTableID == "" {
		return nil, fmt.Errorf("BASEROW_PROPERTIES_TABLE_ID is required when BASEROW_API_TOKEN is set")
	}
	if cfg.Env == "production" && cfg.AdminTokenSecret == "" {
		return nil, fmt.Errorf("ADMIN_API_TOKEN_SECRET is required in production")
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
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
