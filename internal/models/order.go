package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderType string

const (
	OrderTypeShipping OrderType = "shipping"
	OrderTypePickup   OrderType = "pickup"
)

func (t OrderType) Valid() bool {
	return t == OrderTypeShipping || t == OrderTypePickup
}

type OrderStatus string

const (
	StatusReserved       OrderStatus = "reserved"
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusPaid           OrderStatus = "paid"
	StatusPacking        OrderStatus = "packing"
	StatusShipped        OrderStatus = "shipped"
	StatusFulfilled      OrderStatus = "fulfilled"
	StatusCancelled      OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusReserved, StatusPendingPayment, StatusPaid, StatusPacking,
		StatusShipped, StatusFulfilled, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentMethodOnline      PaymentMethod = "online"
	PaymentMethodPayAtPickup PaymentMethod = "pay_at_pickup"
)

type TempZone string

const (
	TempZoneAmbient TempZone = "ambient"
	TempZoneFrozen  TempZone = "frozen"
)

type Order struct {
	ID                uuid.UUID     `json:"id"`
	OrderNumber       string        `json:"order_no"`
	Type              OrderType     `json:"order_type"`
	Status            OrderStatus   `json:"status"`
	PaymentMethod     PaymentMethod `json:"payment_method"`
	TempZone          TempZone      `json:"temp_zone,omitempty"`
	Subtotal          int64         `json:"subtotal"`
	ShippingFee       int64         `json:"shipping_fee"`
	Total             int64         `json:"total"`
	Currency          string        `json:"currency"`
	CustomerName      string        `json:"customer_name"`
	CustomerPhone     string        `json:"customer_phone"`
	CustomerEmail     string        `json:"customer_email,omitempty"`
	PickupDate        string        `json:"pickup_date,omitempty"`
	PickupTime        string        `json:"pickup_time,omitempty"`
	AgreementAccepted bool          `json:"agreement_accepted"`
	AdminNote         string        `json:"admin_note,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
	PackedAt          *time.Time    `json:"packed_at,omitempty"`
	ShippedAt         *time.Time    `json:"shipped_at,omitempty"`
	FulfilledAt       *time.Time    `json:"fulfilled_at,omitempty"`
	CancelledAt       *time.Time    `json:"cancelled_at,omitempty"`

	Items     []OrderItem      `json:"items,omitempty"`
	Address   *ShippingAddress `json:"shipping_address,omitempty"`
	Shipments []Shipment       `json:"shipments,omitempty"`
	Payments  []Payment        `json:"payments,omitempty"`
}

// IsPayAtPickup reports whether the order is settled in store rather than online.
func (o *Order) IsPayAtPickup() bool {
	return o.PaymentMethod == PaymentMethodPayAtPickup
}

// LatestPayment returns the most recently created payment attempt, if any.
func (o *Order) LatestPayment() *Payment {
	var latest *Payment
	for i := range o.Payments {
		if latest == nil || o.Payments[i].CreatedAt.After(latest.CreatedAt) {
			latest = &o.Payments[i]
		}
	}
	return latest
}

type OrderItem struct {
	ID              uuid.UUID   `json:"id"`
	OrderID         uuid.UUID   `json:"order_id"`
	ProductID       uuid.UUID   `json:"product_id"`
	VariantID       *uuid.UUID  `json:"variant_id,omitempty"`
	Qty             int         `json:"qty"`
	UnitPrice       int64       `json:"unit_price"`
	LineTotal       int64       `json:"line_total"`
	ProductName     string      `json:"product_name"`
	ProductKind     ProductKind `json:"product_kind"`
	ProductTempZone TempZone    `json:"product_temp_zone"`
	SizeLabel       string      `json:"size_label,omitempty"`
}

// DisplayName is the line label shown on checkout pages and emails.
func (i OrderItem) DisplayName() string {
	if i.SizeLabel == "" {
		return i.ProductName
	}
	return i.ProductName + " (" + i.SizeLabel + ")"
}

type ShippingAddress struct {
	OrderID        uuid.UUID `json:"order_id"`
	PostalCode     string    `json:"postal_code"`
	Region         string    `json:"region"`
	City           string    `json:"city"`
	Address1       string    `json:"address1"`
	Address2       string    `json:"address2,omitempty"`
	RecipientName  string    `json:"recipient_name"`
	RecipientPhone string    `json:"recipient_phone"`
}

// Lines renders the address as display lines, top to bottom.
func (a *ShippingAddress) Lines() []string {
	if a == nil {
		return nil
	}
	lines := []string{a.RecipientName, a.PostalCode + " " + a.Region + " " + a.City, a.Address1}
	if a.Address2 != "" {
		lines = append(lines, a.Address2)
	}
	return lines
}

type Shipment struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	Carrier    string    `json:"carrier"`
	TrackingNo string    `json:"tracking_no"`
	ShippedAt  time.Time `json:"shipped_at"`
}
