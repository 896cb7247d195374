package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/models"
)

type priceResolver interface {
	Resolve(ctx context.Context, orderType models.OrderType, lines []catalog.LineRequest) (*catalog.Snapshot, error)
}

type orderStore interface {
	Create(ctx context.Context, order *models.Order, payment *models.Payment) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	List(ctx context.Context, filter db.OrderFilter) ([]*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) error
	MarkPaidAtPickup(ctx context.Context, orderID uuid.UUID, note string) error
	MarkPacking(ctx context.Context, orderID uuid.UUID) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, carrier, trackingNo string) (*models.Shipment, error)
	MarkFulfilled(ctx context.Context, orderID uuid.UUID) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID, note string) error
}

type paymentStore interface {
	FindByProviderRef(ctx context.Context, provider models.Provider, ref string) (*models.Payment, error)
	MarkLinkCreated(ctx context.Context, paymentID uuid.UUID, ref db.CheckoutRef) error
	MarkSucceeded(ctx context.Context, paymentID uuid.UUID, update db.SucceededUpdate) error
}

// WebhookEventLog is the dedup log for provider deliveries. Record returns
// payments.ErrDuplicateEvent for an event id it has already seen.
type WebhookEventLog interface {
	Record(ctx context.Context, event *models.WebhookEvent) error
}

// OrderEventPublisher fans committed order changes out to other systems.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type noopOrderEventPublisher struct{}

func (noopOrderEventPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error {
	return nil
}
