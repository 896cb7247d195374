package services

import (
	"context"

	"github.com/gitshopapp/storefront/internal/email"
	"github.com/gitshopapp/storefront/internal/models"
)

// OrderNotifier sends the customer-facing emails of the order lifecycle.
type OrderNotifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendPaymentConfirmation(ctx context.Context, order *models.Order) error
	SendOrderShipped(ctx context.Context, order *models.Order, shipment *models.Shipment) error
}

// ShopInfo identifies the shop in customer emails.
type ShopInfo struct {
	Name    string
	BaseURL string
}

type EmailOrderNotifier struct {
	provider email.Provider
	shop     ShopInfo
}

// NewEmailOrderNotifier returns a notifier backed by provider. A nil provider
// disables sending.
func NewEmailOrderNotifier(provider email.Provider, shop ShopInfo) *EmailOrderNotifier {
	return &EmailOrderNotifier{provider: provider, shop: shop}
}

func (n *EmailOrderNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return email.SendOrderConfirmation(ctx, n.provider, BuildOrderInfo(n.shop, order, OrderInfoOverrides{}))
}

func (n *EmailOrderNotifier) SendPaymentConfirmation(ctx context.Context, order *models.Order) error {
	return email.SendPaymentConfirmation(ctx, n.provider, BuildOrderInfo(n.shop, order, OrderInfoOverrides{}))
}

func (n *EmailOrderNotifier) SendOrderShipped(ctx context.Context, order *models.Order, shipment *models.Shipment) error {
	overrides := OrderInfoOverrides{}
	if shipment != nil {
		overrides.TrackingNumber = shipment.TrackingNo
		overrides.TrackingCarrier = shipment.Carrier
	}
	return email.SendOrderShipped(ctx, n.provider, BuildOrderInfo(n.shop, order, overrides))
}

type noopOrderNotifier struct{}

func (noopOrderNotifier) SendOrderConfirmation(context.Context, *models.Order) error {
	return nil
}

func (noopOrderNotifier) SendPaymentConfirmation(context.Context, *models.Order) error {
	return nil
}

func (noopOrderNotifier) SendOrderShipped(context.Context, *models.Order, *models.Shipment) error {
	return nil
}
