package square

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	squareapi "github.com/square/square-go-sdk"
	"github.com/square/square-go-sdk/checkout"
	squareclient "github.com/square/square-go-sdk/client"
	"github.com/square/square-go-sdk/option"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

// Client issues Square Payment Links and looks up payments.
type Client struct {
	client      *squareclient.Client
	locationID  string
	environment models.Environment
}

type ClientConfig struct {
	AccessToken string
	LocationID  string
	// Environment is "production" or "sandbox".
	Environment string
	HTTPClient  *http.Client
	// BaseURL overrides the environment's API host.
	BaseURL string
}

func NewClient(cfg ClientConfig) *Client {
	environment := EnvironmentFor(cfg.Environment)
	baseURL := squareapi.Environments.Sandbox
	if environment == models.EnvironmentLive {
		baseURL = squareapi.Environments.Production
	}
	if cfg.BaseURL != "" {
		baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	opts := []option.RequestOption{
		option.WithToken(cfg.AccessToken),
		option.WithBaseURL(baseURL),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client:      squareclient.NewClient(opts...),
		locationID:  cfg.LocationID,
		environment: environment,
	}
}

// EnvironmentFor maps SQUARE_ENVIRONMENT to a payment environment.
func EnvironmentFor(name string) models.Environment {
	if strings.EqualFold(strings.TrimSpace(name), "production") {
		return models.EnvironmentLive
	}
	return models.EnvironmentTest
}

func (c *Client) Provider() models.Provider {
	return models.ProviderSquare
}

// CreateCheckout creates a Payment Link. The link's order id is what
// payment webhooks reference.
func (c *Client) CreateCheckout(ctx context.Context, req *payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	params, err := paymentLinkParams(req, c.locationID)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Checkout.PaymentLinks.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}
	if err := responseError(resp.Errors); err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}
	link := resp.PaymentLink
	if link == nil {
		return nil, fmt.Errorf("failed to create payment link: empty response")
	}

	checkoutURL := value(link.URL)
	if checkoutURL == "" {
		checkoutURL = value(link.LongURL)
	}
	return &payments.CheckoutSession{
		URL:             checkoutURL,
		CheckoutID:      value(link.ID),
		ProviderOrderID: value(link.OrderID),
		Environment:     c.environment,
	}, nil
}

func paymentLinkParams(req *payments.CheckoutRequest, locationID string) (*checkout.CreatePaymentLinkRequest, error) {
	if req == nil || len(req.Lines) == 0 {
		return nil, fmt.Errorf("checkout request has no lines")
	}
	currency := squareapi.Currency(strings.ToUpper(req.Currency))

	lineItems := make([]*squareapi.OrderLineItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		lineItems = append(lineItems, &squareapi.OrderLineItem{
			Name:     squareapi.String(line.Name),
			Quantity: strconv.FormatInt(line.Qty, 10),
			BasePriceMoney: &squareapi.Money{
				Amount:   squareapi.Int64(line.UnitAmount),
				Currency: currency.Ptr(),
			},
		})
	}

	params := &checkout.CreatePaymentLinkRequest{
		IdempotencyKey: squareapi.String(req.IdempotencyKey),
		Order: &squareapi.Order{
			LocationID:  locationID,
			ReferenceID: squareapi.String(req.OrderNumber),
			LineItems:   lineItems,
		},
		CheckoutOptions: &squareapi.CheckoutOptions{
			RedirectURL: squareapi.String(req.SuccessURL),
		},
	}
	if req.CustomerEmail != "" {
		params.PrePopulatedData = &squareapi.PrePopulatedData{
			BuyerEmail: squareapi.String(req.CustomerEmail),
		}
	}
	return params, nil
}

// OrderRefForPayment fetches a payment and returns the order it belongs to.
func (c *Client) OrderRefForPayment(ctx context.Context, paymentID string) (string, error) {
	if paymentID == "" {
		return "", fmt.Errorf("payment id is required")
	}
	resp, err := c.client.Payments.Get(ctx, &squareapi.GetPaymentsRequest{PaymentID: paymentID})
	if err != nil {
		return "", fmt.Errorf("failed to get payment: %w", err)
	}
	if err := responseError(resp.Errors); err != nil {
		return "", fmt.Errorf("failed to get payment: %w", err)
	}
	if resp.Payment == nil || value(resp.Payment.OrderID) == "" {
		return "", fmt.Errorf("payment %s has no order id", paymentID)
	}
	return value(resp.Payment.OrderID), nil
}

func responseError(errs []*squareapi.Error) error {
	if len(errs) == 0 || errs[0] == nil {
		return nil
	}
	first := errs[0]
	return fmt.Errorf("square error %s: %s", first.Code, value(first.Detail))
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
