// Package payments defines the provider-neutral shapes exchanged with hosted
// checkout providers (Stripe, Square).
package payments

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	// ErrDuplicateEvent is returned by webhook event logs when the provider
	// event id has already been recorded.
	ErrDuplicateEvent = errors.New("webhook event already recorded")
)

type CheckoutLine struct {
	Name       string
	Qty        int64
	UnitAmount int64
}

type CheckoutRequest struct {
	OrderID        uuid.UUID
	OrderNumber    string
	Currency       string
	Lines          []CheckoutLine
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// LinesTotal is the amount the provider will charge for the request.
func (r *CheckoutRequest) LinesTotal() int64 {
	var total int64
	for _, line := range r.Lines {
		total += line.UnitAmount * line.Qty
	}
	return total
}

// CheckoutSession is a hosted payment page issued by a provider.
type CheckoutSession struct {
	URL             string
	CheckoutID      string
	ProviderOrderID string
	Environment     models.Environment
}

type CheckoutProvider interface {
	Provider() models.Provider
	CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)
}

// ProviderEvent is a verified webhook delivery reduced to what reconciliation needs.
type ProviderEvent struct {
	Provider  models.Provider
	EventID   string
	EventType string
	// PaymentCompleted is set only for events that prove money was captured.
	// Every other event is acknowledged without touching state.
	PaymentCompleted bool
	PaymentID        string
	ProviderOrderRef string
	Environment      models.Environment
	Raw              []byte
}

// WebhookVerifier authenticates a raw delivery and parses it. It returns
// ErrInvalidSignature or ErrMalformedEvent (possibly wrapped) on rejection.
type WebhookVerifier interface {
	Provider() models.Provider
	VerifyAndParse(header http.Header, body []byte) (*ProviderEvent, error)
}

// OrderRefResolver recovers the provider order reference of a payment when a
// webhook omits it.
type OrderRefResolver interface {
	OrderRefForPayment(ctx context.Context, paymentID string) (string, error)
}
