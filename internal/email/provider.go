// Package email sends transactional order emails through Resend, Postmark or Mailgun.
package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
	ValidateAPIKey(ctx context.Context) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// Tag groups messages in the provider dashboard, e.g. the template name.
	Tag string
	// OrderNumber is the order the message is about, if any.
	OrderNumber string
}

type Config struct {
	Provider string
	APIKey   string
	From     string
	ReplyTo  string
	Domain   string // For Mailgun
	// BaseURL overrides the provider API host.
	BaseURL    string
	HTTPClient *http.Client
}

// NewProvider builds the configured provider. "none" and "" disable email and
// return a nil Provider, which the Send helpers treat as a no-op.
func NewProvider(config Config) (Provider, error) {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	switch config.Provider {
	case "", "none":
		return nil, nil
	case "postmark":
		return NewPostmarkProvider(config.APIKey, config.From, config.BaseURL, config.HTTPClient), nil
	case "mailgun":
		return NewMailgunProvider(config.APIKey, config.Domain, config.From, config.BaseURL, config.HTTPClient), nil
	case "resend":
		return NewResendProvider(config.APIKey, config.From, config.ReplyTo, config.BaseURL, config.HTTPClient)
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of 'resend', 'postmark', 'mailgun' or 'none'")
	}
}

// do sends req and returns the response body. Non-2xx statuses are returned
// as an error built by describe when it recognizes the body.
func do(client *http.Client, req *http.Request, name string, describe func(status int, body []byte) string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", name, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", name, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close %s response body: %w", name, closeErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if describe != nil {
			if message := describe(resp.StatusCode, body); message != "" {
				return nil, fmt.Errorf("%s error: %s", name, message)
			}
		}
		return nil, fmt.Errorf("%s API returned status %d: %s", name, resp.StatusCode, string(body))
	}
	return body, nil
}
