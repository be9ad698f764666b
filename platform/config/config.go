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

// EngineConfig provides settings for the external workflow engine webhooks.
type EngineConfig interface {
	GetEngineCreateURL() string
	GetEngineSyncURL() string
	GetEngineBroadcastURL() string
	GetEngineSummaryURL() string
	GetEngineUsername() string
	GetEnginePassword() string
	GetEngineTimeout() time.Duration
}

// SchedulerConfig provides settings for the asynq scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDraftCleanupInterval() time.Duration
}

// NotesConfig provides settings for the notes summary feature.
type NotesConfig interface {
	GetRedisURL() string
	GetSummaryWindow() time.Duration
	GetGeminiAPIKey() string
	GetGeminiModel() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketCampaignAssets() string
	IsMinIOEnabled() bool
}

// WatchConfig provides settings for the campaign state polling loop.
type WatchConfig interface {
	GetPollInterval() time.Duration
	GetPollBurstWindow() time.Duration
	GetPollBackoffInterval() time.Duration
}

// AppConfig provides display-level application settings.
type AppConfig interface {
	GetAppName() string
}

// Config is the concrete configuration loaded from the environment.
type Config struct {
	Env         string
	AppName     string
	HTTPAddr    string
	DatabaseURL string

	JWTAccessSecret string

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool

	EngineCreateURL    string
	EngineSyncURL      string
	EngineBroadcastURL string
	EngineSummaryURL   string
	EngineUsername     string
	EnginePassword     string
	EngineTimeout      time.Duration

	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	DraftCleanupInterval time.Duration

	SummaryWindow time.Duration
	GeminiAPIKey  string
	GeminiModel   string

	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinIOMaxFileSize          int64
	MinioBucketCampaignAssets string

	PollInterval        time.Duration
	PollBurstWindow     time.Duration
	PollBackoffInterval time.Duration
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		AppName:     getEnv("APP_NAME", "Metagapura Portal"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		EngineCreateURL:    getEnv("ENGINE_CREATE_CAMPAIGN_URL", ""),
		EngineSyncURL:      getEnv("ENGINE_TRIGGER_SYNC_URL", ""),
		EngineBroadcastURL: getEnv("ENGINE_TRIGGER_BROADCAST_URL", ""),
		EngineSummaryURL:   getEnv("ENGINE_NOTES_SUMMARY_URL", ""),
		EngineUsername:     getEnv("ENGINE_BASIC_AUTH_USER", ""),
		EnginePassword:     getEnv("ENGINE_BASIC_AUTH_PASSWORD", ""),
		EngineTimeout:      mustDuration(getEnv("ENGINE_TIMEOUT", "30s")),

		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		DraftCleanupInterval: mustDuration(getEnv("DRAFT_CLEANUP_INTERVAL", "15m")),

		SummaryWindow: time.Duration(mustInt(getEnv("SUMMARY_WINDOW_HOURS", "24"))) * time.Hour,
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:          int64(mustInt(getEnv("MINIO_MAX_FILE_SIZE_MB", "10"))) * 1024 * 1024,
		MinioBucketCampaignAssets: getEnv("MINIO_BUCKET_CAMPAIGN_ASSETS", "campaign-assets"),

		PollInterval:        mustDuration(getEnv("POLL_INTERVAL", "3s")),
		PollBurstWindow:     mustDuration(getEnv("POLL_BURST_WINDOW", "30s")),
		PollBackoffInterval: mustDuration(getEnv("POLL_BACKOFF_INTERVAL", "10s")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.SummaryWindow <= 0 {
		return nil, fmt.Errorf("SUMMARY_WINDOW_HOURS must be positive")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// Interface implementations.

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }
func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }
func (c *Config) GetAppName() string         { return c.AppName }

func (c *Config) GetEngineCreateURL() string      { return c.EngineCreateURL }
func (c *Config) GetEngineSyncURL() string        { return c.EngineSyncURL }
func (c *Config) GetEngineBroadcastURL() string   { return c.EngineBroadcastURL }
func (c *Config) GetEngineSummaryURL() string     { return c.EngineSummaryURL }
func (c *Config) GetEngineUsername() string       { return c.EngineUsername }
func (c *Config) GetEnginePassword() string       { return c.EnginePassword }
func (c *Config) GetEngineTimeout() time.Duration { return c.EngineTimeout }

func (c *Config) GetRedisURL() string                    { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool              { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string              { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int               { return c.AsynqConcurrency }
func (c *Config) GetDraftCleanupInterval() time.Duration { return c.DraftCleanupInterval }

func (c *Config) GetSummaryWindow() time.Duration { return c.SummaryWindow }
func (c *Config) GetGeminiAPIKey() string         { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string          { return c.GeminiModel }

func (c *Config) GetMinIOEndpoint() string             { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string            { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string            { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                 { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64           { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketCampaignAssets() string { return c.MinioBucketCampaignAssets }
func (c *Config) IsMinIOEnabled() bool {
	return c.MinIOEndpoint != "" && c.MinIOAccessKey != "" && c.MinIOSecretKey != ""
}

func (c *Config) GetPollInterval() time.Duration        { return c.PollInterval }
func (c *Config) GetPollBurstWindow() time.Duration     { return c.PollBurstWindow }
func (c *Config) GetPollBackoffInterval() time.Duration { return c.PollBackoffInterval }

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
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
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
