package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/observability"
)

// TransitionInput is the body of the generic admin status update.
type TransitionInput struct {
	Status         models.OrderStatus `json:"status"`
	TrackingNumber string             `json:"trackingNumber,omitempty"`
	Carrier        string             `json:"carrier,omitempty"`
	Note           string             `json:"note,omitempty"`
}

type ListOrdersInput struct {
	Type   models.OrderType
	Status models.OrderStatus
	Limit  int
}

// AdminService runs the manual order transitions.
type AdminService struct {
	orders    orderStore
	cache     cache.Provider
	notifier  OrderNotifier
	publisher OrderEventPublisher
	logger    *slog.Logger
}

func NewAdminService(orders orderStore, orderCache cache.Provider, notifier OrderNotifier, publisher OrderEventPublisher, logger *slog.Logger) *AdminService {
	if notifier == nil {
		notifier = noopOrderNotifier{}
	}
	if publisher == nil {
		publisher = noopOrderEventPublisher{}
	}
	return &AdminService{
		orders:    orders,
		cache:     orderCache,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *AdminService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

func (s *AdminService) ListOrders(ctx context.Context, input ListOrdersInput) ([]*models.Order, error) {
	if input.Type != "" && !input.Type.Valid() {
		return nil, fmt.Errorf("%w: order type %q", ErrUnsupportedStatus, input.Type)
	}
	if input.Status != "" && !input.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatus, input.Status)
	}
	orders, err := s.orders.List(ctx, db.OrderFilter{Type: input.Type, Status: input.Status, Limit: input.Limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *AdminService) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// transition is one admin operation: a precondition on the loaded order, the
// conditional store update, and the event published once it commits.
type transition struct {
	name   string
	check  func(order *models.Order) error
	apply  func(ctx context.Context, order *models.Order) (*models.Shipment, error)
	event  models.OrderEventType
	notify bool
}

func (s *AdminService) run(ctx context.Context, orderID uuid.UUID, t transition) (*models.Order, error) {
	span := sentry.StartSpan(
		ctx,
		"service.admin."+t.name,
		sentry.WithOpName("service.admin"),
		sentry.WithDescription(t.name),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx).With("order_id", orderID, "action", t.name)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("action", t.name))
	meter.Count("admin.transition.received", 1)
	recordFailed := func(reason string) {
		meter.Count("admin.transition.failed", 1, sentry.WithAttributes(
			attribute.String("reason", reason),
		))
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		recordFailed(ErrorCode(err))
		return nil, err
	}
	if t.check != nil {
		if err := t.check(order); err != nil {
			recordFailed(ErrorCode(err))
			return nil, err
		}
	}

	shipment, err := t.apply(ctx, order)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			err = ErrOrderNotFound
		}
		recordFailed(ErrorCode(err))
		if current, ok := CurrentStatus(err); ok {
			logger.Info("admin transition rejected", "status", current)
		} else if !errors.Is(err, ErrOrderNotFound) {
			logger.Error("admin transition failed", "error", err)
		}
		return nil, err
	}
	meter.Count("admin.transition.processed", 1)
	logger.Info("admin transition applied", "from", order.Status)

	updated, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		// The change is committed; report it with what we know.
		observability.CountReason(meter, "admin.transition.side_effect_failed", "reload_order")
		logger.Error("failed to reload order", "error", err)
		updated = order
	}
	invalidateOrder(ctx, s.cache, logger, updated.OrderNumber)
	if t.event != "" {
		publishOrderEvent(ctx, s.publisher, logger, t.event, updated)
	}
	if t.notify && shipment != nil {
		if err := s.notifier.SendOrderShipped(ctx, updated, shipment); err != nil {
			observability.CountReason(meter, "admin.transition.side_effect_failed", "shipping_email")
			logger.Error("failed to send shipping email", "error", err)
		}
	}

	span.Status = sentry.SpanStatusOK
	return updated, nil
}

// MarkPaid records payment collected at pickup.
func (s *AdminService) MarkPaid(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error) {
	return s.run(ctx, orderID, transition{
		name: "mark_paid",
		check: func(order *models.Order) error {
			if !order.IsPayAtPickup() {
				return ErrNotPayAtPickup
			}
			return nil
		},
		apply: func(ctx context.Context, order *models.Order) (*models.Shipment, error) {
			return nil, s.orders.MarkPaidAtPickup(ctx, order.ID, strings.TrimSpace(note))
		},
		event: models.OrderEventPaid,
	})
}

func (s *AdminService) Pack(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.run(ctx, orderID, transition{
		name:  "pack",
		check: requireShipping,
		apply: func(ctx context.Context, order *models.Order) (*models.Shipment, error) {
			return nil, s.orders.MarkPacking(ctx, order.ID)
		},
	})
}

// Ship records a shipment and emails the tracking details. Known carriers are
// stored by their canonical key.
func (s *AdminService) Ship(ctx context.Context, orderID uuid.UUID, carrier, trackingNo string) (*models.Order, error) {
	carrier = strings.TrimSpace(carrier)
	trackingNo = strings.TrimSpace(trackingNo)
	if carrier == "" || trackingNo == "" {
		observability.CountReason(observability.MeterFromContext(ctx), "admin.transition.failed", "carrier_and_tracking_required")
		return nil, ErrShipmentDetailsRequired
	}
	if normalized := NormalizeCarrier(carrier); normalized != "" {
		carrier = normalized
	}
	return s.run(ctx, orderID, transition{
		name:  "ship",
		check: requireShipping,
		apply: func(ctx context.Context, order *models.Order) (*models.Shipment, error) {
			return s.orders.MarkShipped(ctx, order.ID, carrier, trackingNo)
		},
		event:  models.OrderEventShipped,
		notify: true,
	})
}

func (s *AdminService) Fulfill(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.run(ctx, orderID, transition{
		name: "fulfill",
		apply: func(ctx context.Context, order *models.Order) (*models.Shipment, error) {
			return nil, s.orders.MarkFulfilled(ctx, order.ID)
		},
		event: models.OrderEventFulfilled,
	})
}

func (s *AdminService) Cancel(ctx context.Context, orderID uuid.UUID, note string) (*models.Order, error) {
	return s.run(ctx, orderID, transition{
		name: "cancel",
		apply: func(ctx context.Context, order *models.Order) (*models.Shipment, error) {
			return nil, s.orders.MarkCancelled(ctx, order.ID, strings.TrimSpace(note))
		},
		event: models.OrderEventCancelled,
	})
}

// Transition dispatches a requested target status to its operation.
func (s *AdminService) Transition(ctx context.Context, orderID uuid.UUID, input TransitionInput) (*models.Order, error) {
	status := models.OrderStatus(strings.ToLower(strings.TrimSpace(string(input.Status))))
	switch status {
	case models.StatusPaid:
		return s.MarkPaid(ctx, orderID, input.Note)
	case models.StatusPacking:
		return s.Pack(ctx, orderID)
	case models.StatusShipped:
		return s.Ship(ctx, orderID, input.Carrier, input.TrackingNumber)
	case models.StatusFulfilled:
		return s.Fulfill(ctx, orderID)
	case models.StatusCancelled:
		return s.Cancel(ctx, orderID, input.Note)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatus, input.Status)
	}
}

func requireShipping(order *models.Order) error {
	if order.Type != models.OrderTypeShipping {
		return ErrNotShippingOrder
	}
	return nil
}
