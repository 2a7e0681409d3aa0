package config

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pdf-chat-server/internal/domain"
	"pdf-chat-server/internal/infra/billing"
	"pdf-chat-server/internal/infra/chatapi"
	"pdf-chat-server/internal/infra/s3"
	"pdf-chat-server/internal/infra/supabase"
	"pdf-chat-server/internal/metrics"
	"pdf-chat-server/internal/repository"
	"pdf-chat-server/internal/service"
	"pdf-chat-server/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config *AppConfig
	Logger domain.Logger

	Pool *pgxpool.Pool
	DB   *sql.DB

	UserRepository     *repository.PostgresUserRepository
	DocumentRepository domain.DocumentRepository
	ChatRepository     domain.ChatRepository
	BillingRepository  domain.BillingRepository

	Metrics *metrics.Metrics

	SupabaseClient domain.SupabaseClient
	Storage        domain.ObjectStorage
	ChatAPI        *chatapi.Client
	BillingParser  domain.BillingEventParser

	AuthService     domain.AuthService
	UsageService    domain.UsageService
	DocumentService domain.DocumentService
	ChatService     domain.ChatService
	BillingService  domain.BillingService
	Reconciler      domain.Reconciler
}

// NewContainer reads the configuration and wires every dependency.
// Callers must Close the container.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg, err := NewConfig()
	if err != nil {
		return nil, err
	}
	return NewContainerWithConfig(ctx, cfg, logger.NewLogger(cfg.LogLevel, cfg.LogFormat))
}

// NewContainerWithConfig wires the dependencies for an already parsed config.
func NewContainerWithConfig(ctx context.Context, cfg *AppConfig, appLogger domain.Logger) (*Container, error) {
	pool, db, err := repository.Connect(ctx, repository.PostgresOptions{
		URL:           cfg.Database.URL,
		MaxConns:      cfg.Database.MaxConns,
		MinConns:      cfg.Database.MinConns,
		RetryAttempts: cfg.Database.RetryAttempts,
		RetryInterval: cfg.Database.RetryInterval,
	}, appLogger)
	if err != nil {
		return nil, err
	}
	c := &Container{Config: cfg, Logger: appLogger, Pool: pool, DB: db}

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db, appLogger); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.UserRepository = repository.NewPostgresUserRepository(db, appLogger)
	c.DocumentRepository = repository.NewPostgresDocumentRepository(db, appLogger)
	c.ChatRepository = repository.NewPostgresChatRepository(db)
	c.BillingRepository = repository.NewPostgresBillingRepository(db, appLogger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.New(registry)

	storage, err := newStorage(ctx, cfg, appLogger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Storage = storage

	supabaseClient := supabase.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseKey, appLogger)
	if err := supabaseClient.Initialize(); err != nil {
		c.Close()
		return nil, err
	}
	c.SupabaseClient = supabaseClient

	if cfg.ChatAPI.BaseURL == "" {
		c.Close()
		return nil, fmt.Errorf("CHAT_URL is required")
	}
	c.ChatAPI = chatapi.New(cfg.ChatAPI.BaseURL, cfg.ChatAPI.APIKey, &http.Client{}, appLogger)

	provider := billing.NewProvider(cfg.Stripe.SecretKey, cfg.AppURL, appLogger)
	c.BillingParser = billing.NewWebhookParser(cfg.Stripe.WebhookSecret, provider.FetchSubscription, appLogger)
	if cfg.Stripe.WebhookSecret == "" {
		appLogger.Warn("STRIPE_WEBHOOK_SECRET is not set, webhook deliveries will be rejected")
	}

	prices := cfg.PriceCatalog()
	usage := service.NewUsageService(c.UserRepository, c.UserRepository, c.DocumentRepository, c.Metrics, appLogger)
	c.UsageService = usage
	c.Reconciler = service.NewReconciler(c.UserRepository, c.BillingRepository, prices, c.Metrics, appLogger)
	c.AuthService = service.NewAuthService(supabaseClient, c.UserRepository, appLogger)
	c.BillingService = service.NewBillingService(c.UserRepository, provider, prices, appLogger)

	docOpts := service.DefaultDocumentOptions()
	docOpts.MaxFileSize = cfg.MaxFileSize
	docOpts.SignedURLTTL = cfg.Storage.SignedURLTTL
	docOpts.IndexerTimeout = cfg.ChatAPI.IndexerTimeout
	c.DocumentService = service.NewDocumentService(
		c.DocumentRepository,
		usage,
		storage,
		c.ChatAPI,
		service.NewPDFInspector(appLogger),
		c.Metrics,
		appLogger,
		docOpts,
	)
	c.ChatService = service.NewChatService(
		c.ChatRepository,
		c.DocumentRepository,
		usage,
		c.ChatAPI,
		appLogger,
		cfg.ChatAPI.AnswerTimeout,
	)

	return c, nil
}

func newStorage(ctx context.Context, cfg *AppConfig, appLogger domain.Logger) (domain.ObjectStorage, error) {
	switch cfg.Storage.Backend {
	case StorageBackendSupabase:
		if cfg.SupabaseURL == "" || cfg.Storage.SupabaseKey == "" {
			return nil, fmt.Errorf("supabase storage needs SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
		return service.NewStorageService(cfg.SupabaseURL, cfg.Storage.SupabaseKey, cfg.Storage.SupabaseBucket), nil
	default:
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UsePathStyle:    cfg.Storage.UsePathStyle,
		}, appLogger)
	}
}

// Close releases the database handles.
func (c *Container) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error("Failed to close database", err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}
