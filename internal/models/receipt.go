package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderReceipt is what a customer sees on the confirmation page. It never
// carries contact details, idempotency keys or provider payloads, so it is
// safe to cache outside the database.
type OrderReceipt struct {
	OrderNumber   string            `json:"orderNo"`
	Type          OrderType         `json:"orderType"`
	Status        OrderStatus       `json:"status"`
	PaymentMethod PaymentMethod     `json:"paymentMethod"`
	PaymentStatus PaymentStatus     `json:"paymentStatus,omitempty"`
	TempZone      TempZone          `json:"tempZone,omitempty"`
	Currency      string            `json:"currency"`
	Subtotal      int64             `json:"subtotal"`
	ShippingFee   int64             `json:"shippingFee"`
	Total         int64             `json:"total"`
	CustomerName  string            `json:"customerName"`
	PickupDate    string            `json:"pickupDate,omitempty"`
	PickupTime    string            `json:"pickupTime,omitempty"`
	Items         []ReceiptItem     `json:"items"`
	Address       *ReceiptAddress   `json:"address,omitempty"`
	Shipments     []ReceiptShipment `json:"shipments,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	PaidAt        *time.Time        `json:"paidAt,omitempty"`
}

type ReceiptItem struct {
	ProductID uuid.UUID  `json:"productId"`
	VariantID *uuid.UUID `json:"variantId,omitempty"`
	Name      string     `json:"name"`
	SizeLabel string     `json:"sizeLabel,omitempty"`
	Qty       int        `json:"qty"`
	UnitPrice int64      `json:"unitPrice"`
	LineTotal int64      `json:"lineTotal"`
}

type ReceiptAddress struct {
	PostalCode string `json:"postalCode"`
	Region     string `json:"pref"`
	City       string `json:"city"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2,omitempty"`
}

type ReceiptShipment struct {
	Carrier     string    `json:"carrier"`
	TrackingNo  string    `json:"trackingNo"`
	TrackingURL string    `json:"trackingUrl,omitempty"`
	ShippedAt   time.Time `json:"shippedAt"`
}
