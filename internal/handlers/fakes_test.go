package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/services"
	"github.com/gitshopapp/storefront/internal/session"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeCatalog struct {
	products   []*models.Product
	lastKind   string
	upserted   *catalog.ProductConfig
	upsertErr  error
	listAllHit bool
}

func (c *fakeCatalog) ListActive(_ context.Context, kind string) ([]*models.Product, error) {
	c.lastKind = kind
	return c.products, nil
}

func (c *fakeCatalog) ListAll(_ context.Context, kind string) ([]*models.Product, error) {
	c.lastKind = kind
	c.listAllHit = true
	return c.products, nil
}

func (c *fakeCatalog) Upsert(_ context.Context, input catalog.ProductConfig) (*models.Product, error) {
	if c.upsertErr != nil {
		return nil, c.upsertErr
	}
	c.upserted = &input
	return &models.Product{ID: uuid.New(), Slug: input.Slug, Name: input.Name}, nil
}

type fakeOrders struct {
	placed      services.PlaceOrderInput
	result      *services.PlaceOrderResult
	err         error
	order       *models.Order
	retriedFor  string
	lookedUpFor string
}

func (o *fakeOrders) PlaceShippingOrder(_ context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error) {
	input.Type = models.OrderTypeShipping
	o.placed = input
	return o.result, o.err
}

func (o *fakeOrders) PlacePickupOrder(_ context.Context, input services.PlaceOrderInput) (*services.PlaceOrderResult, error) {
	input.Type = models.OrderTypePickup
	o.placed = input
	return o.result, o.err
}

func (o *fakeOrders) RetryCheckout(_ context.Context, orderNumber string) (*services.PlaceOrderResult, error) {
	o.retriedFor = orderNumber
	return o.result, o.err
}

func (o *fakeOrders) GetOrderByNumber(_ context.Context, orderNumber string) (*models.OrderReceipt, error) {
	o.lookedUpFor = orderNumber
	if o.order == nil {
		return nil, services.ErrOrderNotFound
	}
	return services.NewOrderReceipt(o.order), nil
}

type fakeWebhooks struct {
	provider models.Provider
	body     []byte
	outcome  services.ReconcileOutcome
	err      error
}

func (f *fakeWebhooks) Reconcile(_ context.Context, provider models.Provider, _ http.Header, body []byte) (services.ReconcileOutcome, error) {
	f.provider = provider
	f.body = body
	return f.outcome, f.err
}

type fakeAdmin struct {
	orders     []*models.Order
	listInput  services.ListOrdersInput
	transition services.TransitionInput
	note       string
	carrier    string
	trackingNo string
	order      *models.Order
	err        error
}

func (a *fakeAdmin) ListOrders(_ context.Context, input services.ListOrdersInput) ([]*models.Order, error) {
	a.listInput = input
	return a.orders, a.err
}

func (a *fakeAdmin) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	if a.order == nil || a.order.ID != orderID {
		return nil, services.ErrOrderNotFound
	}
	return a.order, nil
}

func (a *fakeAdmin) Transition(_ context.Context, _ uuid.UUID, input services.TransitionInput) (*models.Order, error) {
	a.transition = input
	return a.order, a.err
}

func (a *fakeAdmin) MarkPaid(_ context.Context, _ uuid.UUID, note string) (*models.Order, error) {
	a.note = note
	return a.order, a.err
}

func (a *fakeAdmin) Ship(_ context.Context, _ uuid.UUID, carrier, trackingNo string) (*models.Order, error) {
	a.carrier = carrier
	a.trackingNo = trackingNo
	return a.order, a.err
}

const (
	testAdminPassword = "correct horse"
	testAdminToken    = "valid-token"
)

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, password string) (services.LoginResult, error) {
	if password != testAdminPassword {
		return services.LoginResult{}, services.ErrInvalidCredentials
	}
	return services.LoginResult{
		Subject:   "admin",
		Token:     testAdminToken,
		ExpiresAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (fakeAuth) VerifyToken(raw string) (string, error) {
	if raw != testAdminToken {
		return "", errors.New("invalid admin token")
	}
	return "admin", nil
}

type handlerFixture struct {
	catalog  *fakeCatalog
	orders   *fakeOrders
	webhooks *fakeWebhooks
	admin    *fakeAdmin
	handlers *Handlers
	router   *mux.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		catalog:  &fakeCatalog{},
		orders:   &fakeOrders{},
		webhooks: &fakeWebhooks{outcome: services.OutcomeProcessed},
		admin:    &fakeAdmin{},
	}
	sessions, err := session.NewMemoryStore(0)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	h, err := New(Dependencies{
		Config:         &config.Config{BaseURL: "https://shop.example.com"},
		DB:             fakePinger{},
		Catalog:        f.catalog,
		Orders:         f.orders,
		Webhooks:       f.webhooks,
		Admin:          f.admin,
		Auth:           fakeAuth{},
		SessionManager: session.NewManager(sessions, true),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.handlers = h

	r := mux.NewRouter()
	r.HandleFunc("/api/products", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/shipping", h.PlaceShippingOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/pickup", h.PlacePickupOrder).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/by-no/{orderNo}", h.GetOrderByNumber).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{orderNo}/checkout", h.RetryCheckout).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/square", h.SquareWebhook).Methods(http.MethodPost)
	r.HandleFunc("/admin/login", h.AdminLogin).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(h.SessionMiddleware, h.RequireAdmin, h.RequireSameOrigin)
	admin.HandleFunc("/logout", h.AdminLogout).Methods(http.MethodPost)
	admin.HandleFunc("/orders", h.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", h.UpdateOrder).Methods(http.MethodPatch)
	admin.HandleFunc("/orders/{id}/mark-paid", h.MarkPaid).Methods(http.MethodPost)
	admin.HandleFunc("/orders/{id}/ship", h.ShipOrder).Methods(http.MethodPost)
	admin.HandleFunc("/products", h.ListProductsAdmin).Methods(http.MethodGet)
	admin.HandleFunc("/products", h.UpsertProduct).Methods(http.MethodPost)
	f.router = r

	return f
}

func (f *handlerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) adminRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, "https://shop.example.com"+target, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	return req
}

type testEnvelope struct {
	OK            bool            `json:"ok"`
	Data          json.RawMessage `json:"data"`
	Error         string          `json:"error"`
	CurrentStatus string          `json:"currentStatus"`
	Result        string          `json:"result"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return env
}
