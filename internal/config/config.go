package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	Port        string `env:"PORT" envDefault:"8080"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`

	Currency    string `env:"CURRENCY" envDefault:"jpy" validate:"len=3,lowercase"`
	ShippingFee int64  `env:"SHIPPING_FEE" envDefault:"1200" validate:"gte=0"`
	ShopName    string `env:"SHOP_NAME" envDefault:"Storefront"`

	PaymentProvider string        `env:"PAYMENT_PROVIDER" envDefault:"stripe" validate:"oneof=stripe square"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s" validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	SquareAccessToken            string `env:"SQUARE_ACCESS_TOKEN"`
	SquareLocationID             string `env:"SQUARE_LOCATION_ID"`
	SquareEnvironment            string `env:"SQUARE_ENVIRONMENT" envDefault:"sandbox" validate:"oneof=sandbox production"`
	SquareWebhookSignatureKey    string `env:"SQUARE_WEBHOOK_SIGNATURE_KEY"`
	SquareWebhookNotificationURL string `env:"SQUARE_WEBHOOK_NOTIFICATION_URL" validate:"omitempty,url"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"none" validate:"oneof=resend postmark mailgun none"`
	EmailAPIKey   string `env:"EMAIL_API_KEY" validate:"required_unless=EmailProvider none"`
	EmailFrom     string `env:"EMAIL_FROM" validate:"required_unless=EmailProvider none"`
	EmailReplyTo  string `env:"EMAIL_REPLY_TO" validate:"omitempty,email"`
	EmailDomain   string `env:"EMAIL_DOMAIN" validate:"required_if=EmailProvider mailgun"`

	CacheProvider         string        `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	ReceiptCacheTTL       time.Duration `env:"RECEIPT_CACHE_TTL" envDefault:"30s" validate:"gte=0"`
	SessionStoreProvider  string        `env:"SESSION_STORE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string        `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis,required_if=SessionStoreProvider redis"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required" validate:"required,len=32"`

	AdminPassword     string        `env:"ADMIN_PASSWORD"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	AdminTokenSecret  string        `env:"ADMIN_TOKEN_SECRET" validate:"omitempty,min=32"`
	AdminTokenTTL     time.Duration `env:"ADMIN_TOKEN_TTL" envDefault:"12h" validate:"gt=0"`
	AdminMaxSessions  int           `env:"ADMIN_MAX_SESSIONS" envDefault:"256" validate:"gt=0"`

	EventLogProvider    string `env:"EVENT_LOG_PROVIDER" envDefault:"postgres" validate:"oneof=postgres dynamodb"`
	EventLogTable       string `env:"EVENT_LOG_TABLE" validate:"required_if=EventLogProvider dynamodb"`
	AWSRegion           string `env:"AWS_REGION" envDefault:"ap-northeast-1"`
	OrderEventsQueueURL string `env:"ORDER_EVENTS_QUEUE_URL" validate:"omitempty,url"`

	SentryDSN              string  `env:"SENTRY_DSN"`
	SentryEnvironment      string  `env:"SENTRY_ENVIRONMENT" envDefault:"development"`
	SentryTracesSampleRate float64 `env:"SENTRY_TRACES_SAMPLE_RATE" envDefault:"0.1" validate:"gte=0,lte=1"`
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	switch c.PaymentProvider {
	case "stripe":
		if strings.TrimSpace(c.StripeSecretKey) == "" || strings.TrimSpace(c.StripeWebhookSecret) == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_WEBHOOK_SECRET are required when PAYMENT_PROVIDER is stripe")
		}
	case "square":
		if strings.TrimSpace(c.SquareAccessToken) == "" || strings.TrimSpace(c.SquareLocationID) == "" {
			return fmt.Errorf("SQUARE_ACCESS_TOKEN and SQUARE_LOCATION_ID are required when PAYMENT_PROVIDER is square")
		}
		if strings.TrimSpace(c.SquareWebhookSignatureKey) == "" {
			return fmt.Errorf("SQUARE_WEBHOOK_SIGNATURE_KEY is required when PAYMENT_PROVIDER is square")
		}
	}
	hasSignatureKey := strings.TrimSpace(c.SquareWebhookSignatureKey) != ""
	hasNotificationURL := strings.TrimSpace(c.SquareWebhookNotificationURL) != ""
	if hasSignatureKey != hasNotificationURL {
		return fmt.Errorf("SQUARE_WEBHOOK_SIGNATURE_KEY and SQUARE_WEBHOOK_NOTIFICATION_URL must be set together")
	}

	if strings.TrimSpace(c.AdminPassword) == "" && strings.TrimSpace(c.AdminPasswordHash) == "" {
		return fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}

	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	return nil
}

// SecureCookies reports whether admin cookies must be marked Secure.
func (c *Config) SecureCookies() bool {
	if c == nil {
		return false
	}
	if parsed, err := url.Parse(strings.TrimSpace(c.BaseURL)); err == nil && parsed.Scheme != "" {
		return strings.EqualFold(parsed.Scheme, "https")
	}
	return c.Port == "443" || c.Port == "8443"
}

// StripeEnabled reports whether Stripe checkouts or webhooks are configured.
func (c *Config) StripeEnabled() bool {
	return strings.TrimSpace(c.StripeSecretKey) != ""
}

// SquareEnabled reports whether Square checkouts or webhooks are configured.
func (c *Config) SquareEnabled() bool {
	return strings.TrimSpace(c.SquareAccessToken) != ""
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
