package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"

	"github.com/gitshopapp/storefront/internal/config"
	"github.com/gitshopapp/storefront/internal/handlers"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	handlers   *handlers.Handlers
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if h == nil {
		return nil, fmt.Errorf("handlers are required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		handlers: h,
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sentryHandler.Handle(s.buildRouter()),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Checkout creation waits on the payment provider.
		WriteTimeout:   cfg.ProviderTimeout + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s, nil
}

func (s *Server) Run() error {
	s.logger.Info("server starting", "port", s.cfg.Port)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Close(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}

	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) buildRouter() *mux.Router {
	h := s.handlers

	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.MetricsContext)
	r.Use(h.SecurityHeaders)
	r.HandleFunc("/health", h.Health).Methods("GET").Name("health")

	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", h.ListProducts).Methods("GET").Name("products.list")
	api.HandleFunc("/orders/shipping", h.PlaceShippingOrder).Methods("POST").Name("orders.shipping")
	api.HandleFunc("/orders/pickup", h.PlacePickupOrder).Methods("POST").Name("orders.pickup")
	api.HandleFunc("/orders/by-no/{orderNo}", h.GetOrderByNumber).Methods("GET").Name("orders.by_no")
	api.HandleFunc("/orders/{orderNo}/checkout", h.RetryCheckout).Methods("POST").Name("orders.checkout_retry")

	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods("POST").Name("webhooks.stripe")
	r.HandleFunc("/webhooks/square", h.SquareWebhook).Methods("POST").Name("webhooks.square")

	// Public admin routes
	r.HandleFunc("/admin/login", h.AdminLogin).Methods("POST").Name("admin.login")

	// Protected admin routes - require a session cookie or bearer token
	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(h.SessionMiddleware)
	adminRouter.Use(h.RequireAdmin)
	adminRouter.Use(h.RequireSameOrigin)
	adminRouter.HandleFunc("/logout", h.AdminLogout).Methods("POST").Name("admin.logout")
	adminRouter.HandleFunc("/orders", h.ListOrders).Methods("GET").Name("admin.orders.list")
	adminRouter.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET").Name("admin.orders.get")
	adminRouter.HandleFunc("/orders/{id}", h.UpdateOrder).Methods("PATCH").Name("admin.orders.update")
	adminRouter.HandleFunc("/orders/{id}/mark-paid", h.MarkPaid).Methods("POST").Name("admin.orders.mark_paid")
	adminRouter.HandleFunc("/orders/{id}/ship", h.ShipOrder).Methods("POST").Name("admin.orders.ship")
	adminRouter.HandleFunc("/products", h.ListProductsAdmin).Methods("GET").Name("admin.products.list")
	adminRouter.HandleFunc("/products", h.UpsertProduct).Methods("POST").Name("admin.products.upsert")

	return r
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeRouteError(w, http.StatusNotFound, "not_found")
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeRouteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
}

func writeRouteError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": code})
}
