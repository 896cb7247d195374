package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderSquare Provider = "square"
	ProviderOnSite Provider = "on_site"
)

type PaymentStatus string

const (
	PaymentInit        PaymentStatus = "init"
	PaymentLinkCreated PaymentStatus = "link_created"
	PaymentSucceeded   PaymentStatus = "succeeded"
	PaymentFailed      PaymentStatus = "failed"
	PaymentCanceled    PaymentStatus = "canceled"
	PaymentRefunded    PaymentStatus = "refunded"
)

// paymentPredecessors lists, for each status, the statuses a payment may move from.
var paymentPredecessors = map[PaymentStatus][]PaymentStatus{
	PaymentLinkCreated: {PaymentInit},
	PaymentSucceeded:   {PaymentInit, PaymentLinkCreated},
	PaymentFailed:      {PaymentInit, PaymentLinkCreated},
	PaymentCanceled:    {PaymentInit, PaymentLinkCreated},
	PaymentRefunded:    {PaymentSucceeded},
}

// PaymentPredecessors returns the statuses from which next is reachable.
func PaymentPredecessors(next PaymentStatus) []PaymentStatus {
	return paymentPredecessors[next]
}

// CanAdvanceTo reports whether moving from s to next keeps the payment moving forward.
func (s PaymentStatus) CanAdvanceTo(next PaymentStatus) bool {
	for _, from := range paymentPredecessors[next] {
		if from == s {
			return true
		}
	}
	return false
}

type Environment string

const (
	EnvironmentTest Environment = "test"
	EnvironmentLive Environment = "live"
)

type Payment struct {
	ID                 uuid.UUID       `json:"id"`
	OrderID            uuid.UUID       `json:"order_id"`
	Provider           Provider        `json:"provider"`
	Status             PaymentStatus   `json:"status"`
	Amount             int64           `json:"amount"`
	Currency           string          `json:"currency"`
	ProviderCheckoutID string          `json:"provider_checkout_id,omitempty"`
	ProviderOrderID    string          `json:"provider_order_id,omitempty"`
	ProviderPaymentID  string          `json:"provider_payment_id,omitempty"`
	IdempotencyKey     string          `json:"idempotency_key"`
	Environment        Environment     `json:"environment,omitempty"`
	RawWebhook         json.RawMessage `json:"raw_webhook,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type WebhookEvent struct {
	Provider   Provider        `json:"provider"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}
