package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/payments"
)

const (
	defaultProviderTimeout = 15 * time.Second
	shippingLineName       = "Shipping"
)

type CheckoutServiceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CheckoutService issues hosted checkout pages for online orders.
type CheckoutService struct {
	providers map[models.Provider]payments.CheckoutProvider
	payments  paymentStore
	baseURL   string
	timeout   time.Duration
	logger    *slog.Logger
}

func NewCheckoutService(paymentRecords paymentStore, providers []payments.CheckoutProvider, cfg CheckoutServiceConfig, logger *slog.Logger) *CheckoutService {
	byName := make(map[models.Provider]payments.CheckoutProvider, len(providers))
	for _, provider := range providers {
		if provider != nil {
			byName[provider.Provider()] = provider
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	return &CheckoutService{
		providers: byName,
		payments:  paymentRecords,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

func (s *CheckoutService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// BuildCheckoutRequest turns the order snapshot into provider-neutral lines.
// Shipping orders get an extra line for the shipping fee.
func (s *CheckoutService) BuildCheckoutRequest(order *models.Order, payment *models.Payment) (*payments.CheckoutRequest, error) {
	req := &payments.CheckoutRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Currency:       order.Currency,
		CustomerEmail:  order.CustomerEmail,
		SuccessURL:     s.baseURL + "/complete?orderNo=" + url.QueryEscape(order.OrderNumber),
		CancelURL:      s.baseURL + "/cart",
		IdempotencyKey: payment.IdempotencyKey,
	}
	for _, item := range order.Items {
		req.Lines = append(req.Lines, payments.CheckoutLine{
			Name:       item.DisplayName(),
			Qty:        int64(item.Qty),
			UnitAmount: item.UnitPrice,
		})
	}
	if order.Type == models.OrderTypeShipping && order.ShippingFee > 0 {
		req.Lines = append(req.Lines, payments.CheckoutLine{Name: shippingLineName, Qty: 1, UnitAmount: order.ShippingFee})
	}

	if total := req.LinesTotal(); total != order.Total {
		return nil, fmt.Errorf("%w: lines %d, order %d", ErrCheckoutTotalMismatch, total, order.Total)
	}
	return req, nil
}

// Issue creates a hosted checkout for an online order and records the link on
// payment. Pay-at-pickup orders have nothing to issue and return nil.
func (s *CheckoutService) Issue(ctx context.Context, order *models.Order, payment *models.Payment) (*payments.CheckoutSession, error) {
	if order == nil || payment == nil {
		return nil, fmt.Errorf("%w: order and payment are required", ErrCheckoutCreationFailed)
	}
	if order.IsPayAtPickup() {
		return nil, nil
	}

	span := sentry.StartSpan(
		ctx,
		"service.checkout.issue",
		sentry.WithOpName("service.checkout"),
		sentry.WithDescription("Issue"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("order_no", order.OrderNumber, "provider", payment.Provider)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("provider", string(payment.Provider)))
	meter.Count("checkout.session.received", 1)
	recordFailed := func(reason string) {
		meter.Count("checkout.session.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	provider, ok := s.providers[payment.Provider]
	if !ok {
		recordFailed("provider_unavailable")
		return nil, fmt.Errorf("%w: %w: %s", ErrCheckoutCreationFailed, ErrUnknownProvider, payment.Provider)
	}

	req, err := s.BuildCheckoutRequest(order, payment)
	if err != nil {
		recordFailed("total_mismatch")
		logger.Error("checkout lines do not match order total", "error", err)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	session, err := provider.CreateCheckout(callCtx, req)
	if err != nil {
		reason := "create_failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		recordFailed(reason)
		logger.Error("failed to create checkout", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutCreationFailed, err)
	}

	err = s.payments.MarkLinkCreated(ctx, payment.ID, db.CheckoutRef{
		CheckoutID:      session.CheckoutID,
		ProviderOrderID: session.ProviderOrderID,
		Environment:     session.Environment,
	})
	if err != nil {
		recordFailed("record_link_failed")
		logger.Error("failed to record checkout link", "error", err, "checkout_id", session.CheckoutID)
		return nil, fmt.Errorf("%w: record checkout link: %w", ErrCheckoutCreationFailed, err)
	}

	payment.Status = models.PaymentLinkCreated
	payment.ProviderCheckoutID = session.CheckoutID
	payment.ProviderOrderID = session.ProviderOrderID
	payment.Environment = session.Environment
	meter.Count("checkout.session.created", 1)
	span.Status = sentry.SpanStatusOK
	return session, nil
}
