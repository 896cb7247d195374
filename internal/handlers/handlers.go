package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

type pinger interface {
	Ping(ctx context.Context) error
}

type productCatalog interface {
	ListActive(ctx context.Context, kind string) ([]*models.Product, error)
	ListAll(ctx context.Context, kind string) ([]*models.Product, error)
	Upsert(ctx context.Context, input catalog.ProductConfig) (*models.Product, error)
}

type orderIntake interface {
	PlaceShippingOrder(ctx context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error)
	PlacePickupOrder(ctx context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error)
	RetryCheckout(ctx context.Context, orderNumber string) (*services.PlaceOrderResult, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.OrderReceipt, error)
}

type webhookReconciler interface {
	Reconcile(ctx context.Context, provider models.Provider, header http.Header, body []byte) (services.ReconcileOutcome, error)
}

type orderAdmin interface {
	ListOrders(ctx context.Context, input services.ListOrdersInput) ([]*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, input services.TransitionInput) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID, carrier, trackingNo string) (*models.Order, error)
}

type adminAuthenticator interface {
	Login(ctx context.Context, password string) (services.LoginResult, error)
	VerifyToken(raw string) (string, error)
}

// Handlers serves the storefront JSON API, payment webhooks and the admin API.
type Handlers struct {
	config         *config.Config
	db             pinger
	catalog        productCatalog
	orders         orderIntake
	webhooks       webhookReconciler
	admin          orderAdmin
	auth           adminAuthenticator
	sessionManager *session.Manager
	logger         *slog.Logger
}

type Dependencies struct {
	Config         *config.Config
	DB             pinger
	Catalog        productCatalog
	Orders         orderIntake
	Webhooks       webhookReconciler
	Admin          orderAdmin
	Auth           adminAuthenticator
	SessionManager *session.Manager
	Logger         *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if deps.Config == nil {
		return nil, fmt.Errorf("handlers dependencies: config is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("handlers dependencies: db is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("handlers dependencies: catalog is required")
	}
	if deps.Orders == nil {
		return nil, fmt.Errorf("handlers dependencies: orders is required")
	}
	if deps.Webhooks == nil {
		return nil, fmt.Errorf("handlers dependencies: webhooks is required")
	}
	if deps.Admin == nil {
		return nil, fmt.Errorf("handlers dependencies: admin is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("handlers dependencies: auth is required")
	}
	if deps.SessionManager == nil {
		return nil, fmt.Errorf("handlers dependencies: sessionManager is required")
	}

	return &Handlers{
		config:         deps.Config,
		db:             deps.DB,
		catalog:        deps.Catalog,
		orders:         deps.Orders,
		webhooks:       deps.Webhooks,
		admin:          deps.Admin,
		auth:           deps.Auth,
		sessionManager: deps.SessionManager,
		logger:         logger.With("component", "handlers"),
	}, nil
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if err := h.db.Ping(ctx); err != nil {
		logger.Error("database health check failed", "error", err)
		http.Error(w, "Database unhealthy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}

// SessionMiddleware adds session data to the request context
func (h *Handlers) SessionMiddleware(next http.Handler) http.Handler {
	return h.sessionManager.Middleware(next)
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}
