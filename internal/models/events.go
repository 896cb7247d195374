package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderEventType string

const (
	OrderEventCreated   OrderEventType = "order.created"
	OrderEventPaid      OrderEventType = "order.paid"
	OrderEventShipped   OrderEventType = "order.shipped"
	OrderEventFulfilled OrderEventType = "order.fulfilled"
	OrderEventCancelled OrderEventType = "order.cancelled"
)

// OrderEvent is published after an order change has been committed.
type OrderEvent struct {
	Type        OrderEventType `json:"type"`
	OrderID     uuid.UUID      `json:"order_id"`
	OrderNumber string         `json:"order_no"`
	OrderType   OrderType      `json:"order_type"`
	Status      OrderStatus    `json:"status"`
	Total       int64          `json:"total"`
	Currency    string         `json:"currency"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// NewOrderEvent snapshots order as an event of the given type.
func NewOrderEvent(eventType OrderEventType, order *Order) OrderEvent {
	return OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderType:   order.Type,
		Status:      order.Status,
		Total:       order.Total,
		Currency:    order.Currency,
		OccurredAt:  time.Now().UTC(),
	}
}
