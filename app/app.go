package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/aws"
	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/crypto"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/handlers"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/payments"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
	"github.com/gitshopapp/storefront/internal/square"
	"github.com/gitshopapp/storefront/internal/stripe"
)

const (
	startupTimeout     = 30 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

type App struct {
	Config         *config.Config
	Logger         *slog.Logger
	DB             *pgxpool.Pool
	CacheProvider  cache.Provider
	SessionManager *session.Manager
	Catalog        *services.CatalogService
	Handlers       *handlers.Handlers

	sentryEnabled bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg}
	if err := a.initSentry(); err != nil {
		return nil, err
	}
	a.Logger = newLogger(cfg, a.sentryEnabled)
	logger := a.Logger

	startupCtx, startupCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.DB = database

	if err := db.Migrate(startupCtx, database); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
		TTL:                   cfg.ReceiptCacheTTL,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.CacheProvider = cacheProvider

	sessionStore, err := session.NewStore(startupCtx, session.Config{
		Provider:    cfg.SessionStoreProvider,
		RedisURL:    cfg.RedisConnectionString,
		MaxSessions: cfg.AdminMaxSessions,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	a.SessionManager = session.NewManager(sessionStore, cfg.SecureCookies())

	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	orderStore, err := db.NewOrderStore(database, encryptor)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize order store: %w", err)
	}
	paymentStore := db.NewPaymentStore(database)
	productStore := db.NewProductStore(database)

	eventLog, publisher, err := newAWSIntegrations(startupCtx, cfg, database)
	if err != nil {
		a.Close()
		return nil, err
	}

	emailProvider, err := email.NewProvider(email.Config{
		Provider:   cfg.EmailProvider,
		APIKey:     cfg.EmailAPIKey,
		From:       cfg.EmailFrom,
		ReplyTo:    cfg.EmailReplyTo,
		Domain:     cfg.EmailDomain,
		HTTPClient: observability.NewHTTPClient(cfg.ProviderTimeout),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize email provider: %w", err)
	}
	notifier := services.NewEmailOrderNotifier(emailProvider, services.ShopInfo{
		Name:    cfg.ShopName,
		BaseURL: cfg.BaseURL,
	})

	checkoutProviders, verifiers, resolvers := newPaymentProviders(cfg)

	passwords, err := auth.NewPasswordChecker(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize admin password: %w", err)
	}
	tokens, err := auth.NewTokenIssuer(adminTokenSecret(cfg), cfg.AdminTokenTTL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize admin tokens: %w", err)
	}

	checkoutService := services.NewCheckoutService(paymentStore, checkoutProviders, services.CheckoutServiceConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.ProviderTimeout,
	}, logger.With("component", "checkout_service"))
	orderService := services.NewOrderService(
		catalog.NewPriceResolver(productStore),
		orderStore,
		checkoutService,
		cacheProvider,
		notifier,
		publisher,
		services.OrderServiceConfig{
			Currency:    cfg.Currency,
			ShippingFee: cfg.ShippingFee,
			Provider:    models.Provider(cfg.PaymentProvider),
		},
		logger.With("component", "order_service"),
	)
	webhookReconciler := services.NewWebhookReconciler(services.WebhookReconcilerDeps{
		Verifiers:         verifiers,
		OrderRefResolvers: resolvers,
		Events:            eventLog,
		Payments:          paymentStore,
		Orders:            orderStore,
		Cache:             cacheProvider,
		Notifier:          notifier,
		Publisher:         publisher,
	}, logger.With("component", "webhook_reconciler"))
	adminService := services.NewAdminService(orderStore, cacheProvider, notifier, publisher, logger.With("component", "admin_service"))
	a.Catalog = services.NewCatalogService(productStore, logger.With("component", "catalog_service"))
	authService := services.NewAuthService(passwords, tokens, logger.With("component", "auth_service"))

	h, err := handlers.New(handlers.Dependencies{
		Config:         cfg,
		DB:             database,
		Catalog:        a.Catalog,
		Orders:         orderService,
		Webhooks:       webhookReconciler,
		Admin:          adminService,
		Auth:           authService,
		SessionManager: a.SessionManager,
		Logger:         logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}
	a.Handlers = h

	return a, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.SessionManager != nil {
		closeSessionManager(a.Logger, a.SessionManager)
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryEnabled {
		sentry.Flush(sentryFlushTimeout)
	}
}

func (a *App) initSentry() error {
	dsn := strings.TrimSpace(a.Config.SentryDSN)
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      a.Config.SentryEnvironment,
		EnableTracing:    true,
		TracesSampleRate: a.Config.SentryTracesSampleRate,
		EnableLogs:       true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	a.sentryEnabled = true
	return nil
}

// newAWSIntegrations picks the webhook event log and the optional SQS order
// event publisher. A nil publisher disables fan-out.
func newAWSIntegrations(ctx context.Context, cfg *config.Config, database *pgxpool.Pool) (services.WebhookEventLog, services.OrderEventPublisher, error) {
	needsAWS := cfg.EventLogProvider == "dynamodb" || strings.TrimSpace(cfg.OrderEventsQueueURL) != ""
	if !needsAWS {
		return db.NewWebhookEventStore(database), nil, nil
	}

	awsCfg, err := aws.LoadConfig(ctx, cfg.AWSRegion)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var eventLog services.WebhookEventLog = db.NewWebhookEventStore(database)
	if cfg.EventLogProvider == "dynamodb" {
		eventLog = aws.NewEventLog(aws.NewDynamoDBClient(awsCfg), cfg.EventLogTable)
	}

	var publisher services.OrderEventPublisher
	if queueURL := strings.TrimSpace(cfg.OrderEventsQueueURL); queueURL != "" {
		publisher = aws.NewPublisher(aws.NewSQSClient(awsCfg), queueURL)
	}
	return eventLog, publisher, nil
}

// newPaymentProviders builds every configured provider. Webhooks of a
// provider keep verifying after PAYMENT_PROVIDER moves away from it, so
// checkouts already issued there still settle.
func newPaymentProviders(cfg *config.Config) ([]payments.CheckoutProvider, []payments.WebhookVerifier, map[models.Provider]payments.OrderRefResolver) {
	var (
		checkoutProviders []payments.CheckoutProvider
		verifiers         []payments.WebhookVerifier
		resolvers         = map[models.Provider]payments.OrderRefResolver{}
	)

	if cfg.StripeEnabled() {
		checkoutProviders = append(checkoutProviders, stripe.NewClient(cfg.StripeSecretKey))
		if secret := strings.TrimSpace(cfg.StripeWebhookSecret); secret != "" {
			verifiers = append(verifiers, stripe.NewWebhookVerifier(secret))
		}
	}

	if cfg.SquareEnabled() {
		client := square.NewClient(square.ClientConfig{
			AccessToken: cfg.SquareAccessToken,
			LocationID:  cfg.SquareLocationID,
			Environment: cfg.SquareEnvironment,
			HTTPClient:  observability.NewHTTPClient(cfg.ProviderTimeout),
		})
		checkoutProviders = append(checkoutProviders, client)
		resolvers[models.ProviderSquare] = client
		if key := strings.TrimSpace(cfg.SquareWebhookSignatureKey); key != "" {
			verifiers = append(verifiers, square.NewWebhookVerifier(
				key,
				cfg.SquareWebhookNotificationURL,
				square.EnvironmentFor(cfg.SquareEnvironment),
			))
		}
	}

	return checkoutProviders, verifiers, resolvers
}

// adminTokenSecret falls back to the encryption key so a single secret is
// enough for small deployments.
func adminTokenSecret(cfg *config.Config) string {
	if secret := strings.TrimSpace(cfg.AdminTokenSecret); secret != "" {
		return secret
	}
	return cfg.EncryptionKey
}

func newLogger(cfg *config.Config, sentryEnabled bool) *slog.Logger {
	var base slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json":
		base = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	default:
		base = tint.NewHandler(os.Stdout, &tint.Options{Level: cfg.LogLevel})
	}
	if !sentryEnabled {
		return slog.New(base)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelInfo},
	}.NewSentryHandler(context.Background())
	return slog.New(logging.Tee(base, sentryHandler))
}

func closeSessionManager(logger *slog.Logger, manager *session.Manager) {
	if manager == nil {
		return
	}
	if err := manager.Close(); err != nil && logger != nil {
		logger.Warn("failed to close session manager", "error", err)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
