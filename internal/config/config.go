// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads gymsite configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// AI provider modes.
const (
	AIProviderWebhook = "webhook"
	AIProviderOpenAI  = "openai"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	Env           string `env:"GYM_ENV" envDefault:"development"`
	LogLevel      string `env:"GYM_LOG_LEVEL" envDefault:"info"`
	ServerHost    string `env:"GYM_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"GYM_SERVER_PORT" envDefault:"8080"`
	DBPath        string `env:"GYM_DB_PATH" envDefault:"./data/gymsite.db"`
	SessionSecret string `env:"GYM_SESSION_SECRET,required"`
	UploadsDir    string `env:"GYM_UPLOADS_DIR" envDefault:"./uploads"`
	PublicBaseURL string `env:"GYM_PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Redis backs the rate limiter and the site cache when set.
	RedisURL    string `env:"GYM_REDIS_URL"`
	CachePrefix string `env:"GYM_CACHE_PREFIX" envDefault:"gymsite:"`

	// Seed admin, created only when the users table is empty.
	AdminEmail    string `env:"GYM_ADMIN_EMAIL"`
	AdminPassword string `env:"GYM_ADMIN_PASSWORD"`

	Ingest     IngestConfig
	Automation AutomationConfig
	Site       SiteConfig
	Upload     UploadConfig
}

// IngestConfig configures the webhook ingestion endpoint.
type IngestConfig struct {
	AuthEnabled     bool          `env:"GYM_INGEST_AUTH_ENABLED" envDefault:"false"`
	APIKey          string        `env:"GYM_INGEST_API_KEY"`
	SignatureSecret string        `env:"GYM_INGEST_SIGNATURE_SECRET"`
	RateLimitWindow time.Duration `env:"GYM_INGEST_RATE_LIMIT_WINDOW" envDefault:"1m"`
	RateLimitMax    int           `env:"GYM_INGEST_RATE_LIMIT_MAX" envDefault:"10"`
	MaxBodyBytes    int64         `env:"GYM_INGEST_MAX_BODY_BYTES" envDefault:"1048576"`
	MaxTitle        int           `env:"GYM_INGEST_MAX_TITLE" envDefault:"200"`
	MaxExcerpt      int           `env:"GYM_INGEST_MAX_EXCERPT" envDefault:"500"`
	MaxContent      int           `env:"GYM_INGEST_MAX_CONTENT" envDefault:"50000"`
	MaxCategory     int           `env:"GYM_INGEST_MAX_CATEGORY" envDefault:"100"`
	PlaceholderImg  string        `env:"GYM_PLACEHOLDER_IMAGE" envDefault:"/static/placeholder.svg"`
}

// AutomationConfig configures the AI generation trigger.
type AutomationConfig struct {
	WebhookURL        string        `env:"GYM_AUTOMATION_WEBHOOK_URL"`
	Timeout           time.Duration `env:"GYM_AUTOMATION_TIMEOUT" envDefault:"5s"`
	SigningSecret     string        `env:"GYM_AUTOMATION_SIGNING_SECRET"`
	Provider          string        `env:"GYM_AI_PROVIDER" envDefault:"webhook"`
	OpenAIAPIKey      string        `env:"GYM_OPENAI_API_KEY"`
	OpenAIModel       string        `env:"GYM_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	GenerationTimeout time.Duration `env:"GYM_AI_GENERATION_TIMEOUT" envDefault:"2m"`
}

// SiteConfig configures the public site snapshot.
type SiteConfig struct {
	RefreshSpec string `env:"GYM_SITE_REFRESH_SPEC" envDefault:"@every 5m"`
	PostsOnHome int    `env:"GYM_SITE_POSTS_ON_HOME" envDefault:"6"`
}

// UploadConfig configures file uploads.
type UploadConfig struct {
	MaxBytes int64 `env:"GYM_UPLOAD_MAX_BYTES" envDefault:"10485760"`
	MaxWidth int   `env:"GYM_UPLOAD_MAX_WIDTH" envDefault:"1920"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction reports whether GYM_ENV is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if a Redis URL is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// UseOpenAI returns true if posts should be generated directly through OpenAI
// instead of the automation webhook.
func (c AutomationConfig) UseOpenAI() bool {
	return c.Provider == AIProviderOpenAI && c.OpenAIAPIKey != ""
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if len(c.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("GYM_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(c.SessionSecret))
	}
	for _, weak := range knownWeakSecrets {
		if c.SessionSecret == weak {
			return fmt.Errorf("GYM_SESSION_SECRET is a known default value and must not be used")
		}
	}
	if !hasMinimumEntropy(c.SessionSecret) {
		slog.Warn("GYM_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if c.Ingest.RateLimitWindow <= 0 {
		return fmt.Errorf("GYM_INGEST_RATE_LIMIT_WINDOW must be positive")
	}
	if c.Ingest.RateLimitMax <= 0 {
		return fmt.Errorf("GYM_INGEST_RATE_LIMIT_MAX must be positive")
	}
	for name, v := range map[string]int{
		"GYM_INGEST_MAX_TITLE":    c.Ingest.MaxTitle,
		"GYM_INGEST_MAX_EXCERPT":  c.Ingest.MaxExcerpt,
		"GYM_INGEST_MAX_CONTENT":  c.Ingest.MaxContent,
		"GYM_INGEST_MAX_CATEGORY": c.Ingest.MaxCategory,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if c.Automation.Timeout <= 0 {
		return fmt.Errorf("GYM_AUTOMATION_TIMEOUT must be positive")
	}
	switch c.Automation.Provider {
	case AIProviderWebhook, AIProviderOpenAI:
	default:
		return fmt.Errorf("GYM_AI_PROVIDER must be %q or %q, got %q",
			AIProviderWebhook, AIProviderOpenAI, c.Automation.Provider)
	}
	if c.Ingest.AuthEnabled && c.Ingest.APIKey == "" {
		// Fails closed at request time; flag it early.
		slog.Warn("GYM_INGEST_AUTH_ENABLED is true but GYM_INGEST_API_KEY is empty; all ingestion requests will be rejected")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes.
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
