package stripe

import (
	"context"
	"fmt"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

// Client issues Stripe Checkout Sessions.
type Client struct {
	client      *stripeapi.Client
	environment models.Environment
}

func NewClient(secretKey string) *Client {
	return &Client{
		client:      stripeapi.NewClient(secretKey),
		environment: EnvironmentForKey(secretKey),
	}
}

// EnvironmentForKey maps a secret key to the environment it charges in.
func EnvironmentForKey(secretKey string) models.Environment {
	if strings.HasPrefix(secretKey, "sk_live_") || strings.HasPrefix(secretKey, "rk_live_") {
		return models.EnvironmentLive
	}
	return models.EnvironmentTest
}

func (c *Client) Provider() models.Provider {
	return models.ProviderStripe
}

func (c *Client) CreateCheckout(ctx context.Context, req *payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	params, err := sessionParams(req)
	if err != nil {
		return nil, err
	}

	sess, err := c.client.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	// The session id is what checkout.session.* webhooks echo back.
	return &payments.CheckoutSession{
		URL:             sess.URL,
		CheckoutID:      sess.ID,
		ProviderOrderID: sess.ID,
		Environment:     c.environment,
	}, nil
}

func sessionParams(req *payments.CheckoutRequest) (*stripeapi.CheckoutSessionCreateParams, error) {
	if req == nil || len(req.Lines) == 0 {
		return nil, fmt.Errorf("checkout request has no lines")
	}
	currency := strings.ToLower(req.Currency)

	lineItems := make([]*stripeapi.CheckoutSessionCreateLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		lineItems = append(lineItems, &stripeapi.CheckoutSessionCreateLineItemParams{
			PriceData: &stripeapi.CheckoutSessionCreateLineItemPriceDataParams{
				Currency: stripeapi.String(currency),
				ProductData: &stripeapi.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripeapi.String(line.Name),
				},
				UnitAmount: stripeapi.Int64(line.UnitAmount),
			},
			Quantity: stripeapi.Int64(line.Qty),
		})
	}

	params := &stripeapi.CheckoutSessionCreateParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(req.SuccessURL),
		CancelURL:         stripeapi.String(req.CancelURL),
		ClientReferenceID: stripeapi.String(req.OrderNumber),
		LineItems:         lineItems,
		Metadata: map[string]string{
			"order_id": req.OrderID.String(),
			"order_no": req.OrderNumber,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	return params, nil
}
