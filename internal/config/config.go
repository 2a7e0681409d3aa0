package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"pdf-chat-server/internal/domain"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	StorageBackendS3       = "s3"
	StorageBackendSupabase = "supabase"
)

// AppConfig is the process configuration, read from the environment.
type AppConfig struct {
	// Cloud Run (and many PaaS) provide the listening port via PORT.
	// Keep SERVER_PORT for local/dev compatibility.
	Port       string `env:"PORT"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	MaxFileSize     int64         `env:"MAX_FILE_SIZE" envDefault:"5242880"` // 5MB
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AdminSecret     string        `env:"ADMIN_SECRET"`
	AppURL          string        `env:"APP_URL" envDefault:"http://localhost:3000"`

	SupabaseURL string `env:"SUPABASE_URL"`
	SupabaseKey string `env:"SUPABASE_ANON_KEY"`

	Database DatabaseConfig
	Storage  StorageConfig
	ChatAPI  ChatAPIConfig
	Stripe   StripeConfig
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	URL           string        `env:"DATABASE_URL"`
	MaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns      int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	RetryAttempts int           `env:"DB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"2s"`
	AutoMigrate   bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Backend         string        `env:"STORAGE_BACKEND" envDefault:"s3"`
	Bucket          string        `env:"S3_BUCKET"`
	Endpoint        string        `env:"S3_ENDPOINT"` // e.g. https://<account>.r2.cloudflarestorage.com
	Region          string        `env:"S3_REGION" envDefault:"auto"`
	AccessKeyID     string        `env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"S3_SECRET_ACCESS_KEY"`
	UsePathStyle    bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	SupabaseBucket  string        `env:"SUPABASE_STORAGE_BUCKET" envDefault:"documents"`
	SupabaseKey     string        `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SignedURLTTL    time.Duration `env:"SIGNED_URL_TTL" envDefault:"1h"`
}

// ChatAPIConfig points at the external indexing / answering service.
type ChatAPIConfig struct {
	BaseURL        string        `env:"CHAT_URL"`
	APIKey         string        `env:"CHAT_API_KEY"`
	IndexerTimeout time.Duration `env:"INDEXER_TIMEOUT" envDefault:"30s"`
	AnswerTimeout  time.Duration `env:"ANSWER_TIMEOUT" envDefault:"60s"`
}

// StripeConfig holds billing credentials and the sellable prices.
type StripeConfig struct {
	SecretKey      string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret  string `env:"STRIPE_WEBHOOK_SECRET"`
	StarterPriceID string `env:"STRIPE_STARTER_PRICE_ID" envDefault:"price_1RgPSWA6n49uMd1tnwoWS4AJ"`
	PremiumPriceID string `env:"STRIPE_PREMIUM_PRICE_ID" envDefault:"price_1RgPT8A6n49uMd1tAfOGHR7W"`
}

// NewConfig parses the environment into an AppConfig.
func NewConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Storage.Backend != StorageBackendS3 && cfg.Storage.Backend != StorageBackendSupabase {
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	return cfg, nil
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	if c.Port != "" {
		return c.Port
	}
	return c.ServerPort
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// PriceCatalog returns the configured price → plan mapping.
func (c *AppConfig) PriceCatalog() domain.PriceCatalog {
	return domain.PriceCatalog{
		StarterPriceID: c.Stripe.StarterPriceID,
		PremiumPriceID: c.Stripe.PremiumPriceID,
	}
}
