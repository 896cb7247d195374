package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/payments"
)

const (
	DefaultShippingFee = 1200
	DefaultCurrency    = "jpy"
)

type CustomerInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email,omitempty"`
}

type AddressInput struct {
	PostalCode string `json:"postalCode" validate:"required"`
	Region     string `json:"pref" validate:"required"`
	City       string `json:"city" validate:"required"`
	Address1   string `json:"address1" validate:"required"`
	Address2   string `json:"address2,omitempty"`
}

type ItemInput struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	// Qty is a JSON number; fractional values are rejected.
	Qty float64 `json:"qty"`
}

type PlaceOrderInput struct {
	Type              models.OrderType     `json:"-"`
	Customer          CustomerInput        `json:"customer"`
	Address           *AddressInput        `json:"address,omitempty"`
	Items             []ItemInput          `json:"items"`
	AgreementAccepted bool                 `json:"agreementAccepted"`
	PaymentMethod     models.PaymentMethod `json:"paymentMethod,omitempty"`
	PickupDate        string               `json:"pickupDate,omitempty"`
	PickupTime        string               `json:"pickupTime,omitempty"`
}

type PlaceOrderResult struct {
	OrderID       uuid.UUID            `json:"orderId"`
	OrderNumber   string               `json:"orderNo"`
	Type          models.OrderType     `json:"orderType"`
	Status        models.OrderStatus   `json:"status"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	TempZone      models.TempZone      `json:"tempZone,omitempty"`
	Subtotal      int64                `json:"subtotal"`
	ShippingFee   int64                `json:"shippingFee"`
	Total         int64                `json:"total"`
	CheckoutURL   string               `json:"checkoutUrl,omitempty"`
}

type OrderServiceConfig struct {
	Currency    string
	ShippingFee int64
	// Provider issues checkouts for new online orders.
	Provider models.Provider
}

type checkoutIssuer interface {
	Issue(ctx context.Context, order *models.Order, payment *models.Payment) (*payments.CheckoutSession, error)
}

// OrderService assembles orders from storefront requests.
type OrderService struct {
	resolver  priceResolver
	orders    orderStore
	checkout  checkoutIssuer
	cache     cache.Provider
	notifier  OrderNotifier
	publisher OrderEventPublisher
	validate  *validator.Validate
	cfg       OrderServiceConfig
	logger    *slog.Logger
}

func NewOrderService(resolver priceResolver, orders orderStore, checkout checkoutIssuer, orderCache cache.Provider, notifier OrderNotifier, publisher OrderEventPublisher, cfg OrderServiceConfig, logger *slog.Logger) *OrderService {
	if notifier == nil {
		notifier = noopOrderNotifier{}
	}
	if publisher == nil {
		publisher = noopOrderEventPublisher{}
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Provider == "" {
		cfg.Provider = models.ProviderStripe
	}
	return &OrderService{
		resolver:  resolver,
		orders:    orders,
		checkout:  checkout,
		cache:     orderCache,
		notifier:  notifier,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *OrderService) PlaceShippingOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	input.Type = models.OrderTypeShipping
	return s.PlaceOrder(ctx, input)
}

func (s *OrderService) PlacePickupOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	input.Type = models.OrderTypePickup
	return s.PlaceOrder(ctx, input)
}

// validateInput checks the request in a fixed order so the first failure
// always maps to the same code. It returns the effective payment method.
func (s *OrderService) validateInput(input *PlaceOrderInput) (models.PaymentMethod, error) {
	input.Customer.Name = strings.TrimSpace(input.Customer.Name)
	input.Customer.Phone = strings.TrimSpace(input.Customer.Phone)
	if err := s.validate.Struct(input.Customer); err != nil {
		return "", ErrCustomerInfoRequired
	}
	if input.Type == models.OrderTypeShipping {
		if input.Address == nil {
			return "", ErrAddressRequired
		}
		trimAddress(input.Address)
		if err := s.validate.Struct(input.Address); err != nil {
			return "", ErrAddressRequired
		}
	}
	if len(input.Items) == 0 {
		return "", catalog.ErrItemsRequired
	}
	if !input.AgreementAccepted {
		return "", ErrAgreementRequired
	}

	method := input.PaymentMethod
	switch input.Type {
	case models.OrderTypeShipping:
		if method == "" {
			method = models.PaymentMethodOnline
		}
		if method != models.PaymentMethodOnline {
			return "", ErrInvalidPaymentMethod
		}
	case models.OrderTypePickup:
		if method == "" {
			method = models.PaymentMethodPayAtPickup
		}
		if method != models.PaymentMethodOnline && method != models.PaymentMethodPayAtPickup {
			return "", ErrInvalidPaymentMethod
		}
	default:
		return "", fmt.Errorf("unsupported order type %q", input.Type)
	}

	if email := strings.TrimSpace(input.Customer.Email); email != "" {
		if err := s.validate.Var(email, "email"); err != nil {
			return "", ErrInvalidEmail
		}
	}
	return method, nil
}

func trimAddress(a *AddressInput) {
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Region = strings.TrimSpace(a.Region)
	a.City = strings.TrimSpace(a.City)
	a.Address1 = strings.TrimSpace(a.Address1)
	a.Address2 = strings.TrimSpace(a.Address2)
}

func lineRequests(items []ItemInput) ([]catalog.LineRequest, error) {
	lines := make([]catalog.LineRequest, 0, len(items))
	for _, item := range items {
		if item.Qty != math.Trunc(item.Qty) || item.Qty < catalog.MinQty || item.Qty > catalog.MaxQty {
			return nil, fmt.Errorf("%w: %v", catalog.ErrQuantityOutOfRange, item.Qty)
		}
		productID, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid product id %q", catalog.ErrProductNotFound, item.ProductID)
		}
		line := catalog.LineRequest{ProductID: productID, Qty: int(item.Qty)}
		if variant := strings.TrimSpace(item.VariantID); variant != "" {
			variantID, err := uuid.Parse(variant)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid variant id %q", catalog.ErrProductNotFound, item.VariantID)
			}
			line.VariantID = &variantID
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// PlaceOrder validates, prices and stores an order, then issues a checkout
// for online payment. When only the checkout fails, the stored order is
// still returned together with an ErrCheckoutCreationFailed error.
func (s *OrderService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.place",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("PlaceOrder"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("order_type", string(input.Type)))
	meter.Count("order.intake.received", 1)
	recordFailed := func(reason string) {
		meter.Count("order.intake.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	method, err := s.validateInput(&input)
	if err != nil {
		recordFailed(ErrorCode(err))
		return nil, err
	}
	lines, err := lineRequests(input.Items)
	if err != nil {
		recordFailed(ErrorCode(err))
		return nil, err
	}

	snapshot, err := s.resolver.Resolve(ctx, input.Type, lines)
	if err != nil {
		recordFailed(ErrorCode(err))
		return nil, err
	}

	order := &models.Order{
		Type:              input.Type,
		PaymentMethod:     method,
		TempZone:          snapshot.TempZone,
		Subtotal:          snapshot.Subtotal,
		Currency:          s.cfg.Currency,
		CustomerName:      strings.TrimSpace(input.Customer.Name),
		CustomerPhone:     strings.TrimSpace(input.Customer.Phone),
		CustomerEmail:     strings.TrimSpace(input.Customer.Email),
		AgreementAccepted: input.AgreementAccepted,
		Items:             snapshot.Items,
		Status:            models.StatusPendingPayment,
	}
	provider := s.cfg.Provider
	switch input.Type {
	case models.OrderTypeShipping:
		order.ShippingFee = s.cfg.ShippingFee
		order.Address = &models.ShippingAddress{
			PostalCode:     strings.TrimSpace(input.Address.PostalCode),
			Region:         strings.TrimSpace(input.Address.Region),
			City:           strings.TrimSpace(input.Address.City),
			Address1:       strings.TrimSpace(input.Address.Address1),
			Address2:       strings.TrimSpace(input.Address.Address2),
			RecipientName:  order.CustomerName,
			RecipientPhone: order.CustomerPhone,
		}
	case models.OrderTypePickup:
		order.PickupDate = strings.TrimSpace(input.PickupDate)
		order.PickupTime = strings.TrimSpace(input.PickupTime)
		if method == models.PaymentMethodPayAtPickup {
			order.Status = models.StatusReserved
			provider = models.ProviderOnSite
		}
	}
	order.Total = order.Subtotal + order.ShippingFee

	payment := &models.Payment{
		Provider:       provider,
		Status:         models.PaymentInit,
		Amount:         order.Total,
		Currency:       order.Currency,
		IdempotencyKey: uuid.NewString(),
	}
	if err := s.orders.Create(ctx, order, payment); err != nil {
		recordFailed("order_create_failed")
		logger.Error("failed to create order", "error", err, "order_type", input.Type)
		return nil, fmt.Errorf("%w: %w", ErrOrderCreateFailed, err)
	}
	meter.Count("order.created", 1)
	logger = logger.With("order_id", order.ID, "order_no", order.OrderNumber)
	logger.Info("order created", "status", order.Status, "total", order.Total)

	s.publish(ctx, models.OrderEventCreated, order)

	result := newPlaceOrderResult(order)
	if order.IsPayAtPickup() {
		// Reservations are confirmed now; online orders are confirmed on payment.
		if err := s.notifier.SendOrderConfirmation(ctx, order); err != nil {
			observability.CountReason(meter, "order.intake.side_effect_failed", "order_confirmation_email")
			logger.Error("failed to send reservation confirmation", "error", err)
		}
		span.Status = sentry.SpanStatusOK
		return result, nil
	}

	session, err := s.checkout.Issue(ctx, order, payment)
	if err != nil {
		recordFailed("checkout_create_failed")
		logger.Warn("order stored without checkout link", "error", err)
		return result, err
	}
	if session != nil {
		result.CheckoutURL = session.URL
	}
	span.Status = sentry.SpanStatusOK
	return result, nil
}

func newPlaceOrderResult(order *models.Order) *PlaceOrderResult {
	return &PlaceOrderResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Type:          order.Type,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TempZone:      order.TempZone,
		Subtotal:      order.Subtotal,
		ShippingFee:   order.ShippingFee,
		Total:         order.Total,
	}
}

// RetryCheckout issues a new checkout for an unpaid online order, reusing the
// stored idempotency key of its latest payment.
func (s *OrderService) RetryCheckout(ctx context.Context, orderNumber string) (*PlaceOrderResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.order.retry_checkout",
		sentry.WithOpName("service.order"),
		sentry.WithDescription("RetryCheckout"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.Count("order.retry.received", 1)

	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.Status != models.StatusPendingPayment || order.IsPayAtPickup() {
		return nil, &db.TransitionError{Current: order.Status, Expected: []models.OrderStatus{models.StatusPendingPayment}}
	}
	payment := order.LatestPayment()
	if payment == nil || (payment.Status != models.PaymentInit && payment.Status != models.PaymentLinkCreated) {
		return nil, &db.TransitionError{Current: order.Status, Expected: []models.OrderStatus{models.StatusPendingPayment}}
	}

	session, err := s.checkout.Issue(ctx, order, payment)
	if err != nil {
		observability.CountReason(meter, "order.retry.failed", "checkout_create_failed")
		return nil, err
	}
	s.invalidate(ctx, order.OrderNumber)

	result := newPlaceOrderResult(order)
	if session != nil {
		result.CheckoutURL = session.URL
	}
	span.Status = sentry.SpanStatusOK
	return result, nil
}

// GetOrderByNumber returns the receipt shown on the confirmation page. Receipts
// are cached briefly; only the customer-safe view is ever cached.
func (s *OrderService) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.OrderReceipt, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, ErrOrderNotFound
	}
	logger := s.loggerFromContext(ctx)

	if s.cache != nil {
		receipt, err := s.cache.GetReceipt(ctx, orderNumber)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("order cache read failed", "error", err, "order_no", orderNumber)
		}
	}

	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	receipt := NewOrderReceipt(order)
	if s.cache != nil {
		if err := s.cache.PutReceipt(ctx, receipt); err != nil {
			logger.Warn("order cache write failed", "error", err, "order_no", orderNumber)
		}
	}
	return receipt, nil
}

func (s *OrderService) invalidate(ctx context.Context, orderNumber string) {
	invalidateOrder(ctx, s.cache, s.loggerFromContext(ctx), orderNumber)
}

func (s *OrderService) publish(ctx context.Context, eventType models.OrderEventType, order *models.Order) {
	publishOrderEvent(ctx, s.publisher, s.loggerFromContext(ctx), eventType, order)
}

func invalidateOrder(ctx context.Context, orderCache cache.Provider, logger *slog.Logger, orderNumber string) {
	if orderCache == nil || orderNumber == "" {
		return
	}
	if err := orderCache.Invalidate(ctx, orderNumber); err != nil {
		logger.Warn("failed to invalidate cached order", "error", err, "order_no", orderNumber)
	}
}

func publishOrderEvent(ctx context.Context, publisher OrderEventPublisher, logger *slog.Logger, eventType models.OrderEventType, order *models.Order) {
	if publisher == nil || order == nil {
		return
	}
	if err := publisher.PublishOrderEvent(ctx, models.NewOrderEvent(eventType, order)); err != nil {
		observability.CountReason(observability.MeterFromContext(ctx), "order.event.publish_failed", string(eventType))
		logger.Error("failed to publish order event", "error", err, "event_type", eventType, "order_no", order.OrderNumber)
	}
}
