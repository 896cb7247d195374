// Package stripe adapts Stripe Checkout and Stripe webhooks to the
// provider-neutral payments types.
package stripe

import (
	"encoding/json"
	"fmt"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

const SignatureHeader = "Stripe-Signature"

const (
	eventCheckoutCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Provider() models.Provider {
	return models.ProviderStripe
}

// VerifyAndParse checks the Stripe-Signature header against the raw body and
// decodes the event. The API version of the event is not enforced.
func (v *WebhookVerifier) VerifyAndParse(header http.Header, body []byte) (*payments.ProviderEvent, error) {
	signature := header.Get(SignatureHeader)
	if signature == "" {
		return nil, fmt.Errorf("%w: missing %s header", payments.ErrInvalidSignature, SignatureHeader)
	}
	if err := webhook.ValidatePayload(body, signature, v.secret); err != nil {
		return nil, fmt.Errorf("%w: %w", payments.ErrInvalidSignature, err)
	}

	var event stripeapi.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", payments.ErrMalformedEvent, err)
	}
	return ParseEvent(&event, body)
}

// ParseEvent reduces a Stripe event to a ProviderEvent. Only a paid checkout
// session carries the completion signal; failed or expired sessions come back
// without one so the order stays open for a retry.
func ParseEvent(event *stripeapi.Event, raw []byte) (*payments.ProviderEvent, error) {
	if event.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", payments.ErrMalformedEvent)
	}

	parsed := &payments.ProviderEvent{
		Provider:    models.ProviderStripe,
		EventID:     event.ID,
		EventType:   string(event.Type),
		Environment: environmentFor(event.Livemode),
		Raw:         raw,
	}

	switch event.Type {
	case eventCheckoutCompleted, eventAsyncPaymentSucceeded:
	default:
		return parsed, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("%w: missing event data", payments.ErrMalformedEvent)
	}
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: invalid checkout session: %w", payments.ErrMalformedEvent, err)
	}

	parsed.ProviderOrderRef = session.ID
	if session.PaymentIntent != nil {
		parsed.PaymentID = session.PaymentIntent.ID
	}
	parsed.PaymentCompleted = session.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid
	return parsed, nil
}

func environmentFor(livemode bool) models.Environment {
	if livemode {
		return models.EnvironmentLive
	}
	return models.EnvironmentTest
}
