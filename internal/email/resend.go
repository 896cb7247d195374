package email

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	resend "github.com/resend/resend-go/v3"
)

// Resend tag values may only hold ASCII letters, digits, underscores and dashes.
var resendTagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ResendProvider sends order emails through Resend. Replies go to the shop's
// reply-to address, and each message is tagged with its template and order
// number.
type ResendProvider struct {
	from    string
	replyTo string
	client  *resend.Client
}

func NewResendProvider(apiKey, from, replyTo, baseURL string, httpClient *http.Client) (*ResendProvider, error) {
	client := resend.NewCustomClient(httpClient, strings.TrimSpace(apiKey))
	if baseURL != "" {
		parsed, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid resend base url: %w", err)
		}
		client.BaseURL = parsed
	}
	return &ResendProvider{from: from, replyTo: replyTo, client: client}, nil
}

func (r *ResendProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	params, options, err := r.sendParams(email)
	if err != nil {
		return err
	}
	if _, err := r.client.Emails.SendWithOptions(ctx, params, options); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}

func (r *ResendProvider) sendParams(email *Email) (*resend.SendEmailRequest, *resend.SendEmailOptions, error) {
	if email.HTML == "" && email.Text == "" {
		return nil, nil, fmt.Errorf("email body is empty")
	}

	params := &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{email.To},
		Subject: email.Subject,
		ReplyTo: r.replyTo,
		Html:    email.HTML,
		Text:    email.Text,
	}
	if email.Tag != "" {
		params.Tags = append(params.Tags, resend.Tag{Name: "template", Value: resendTagValue(email.Tag)})
	}
	if email.OrderNumber != "" {
		params.Tags = append(params.Tags, resend.Tag{Name: "order_no", Value: resendTagValue(email.OrderNumber)})
	}

	// One message per template and order: a repeated side effect within
	// Resend's idempotency window is not delivered twice.
	options := &resend.SendEmailOptions{}
	if email.Tag != "" && email.OrderNumber != "" {
		options.IdempotencyKey = email.Tag + "/" + email.OrderNumber
	}
	return params, options, nil
}

func (r *ResendProvider) ValidateAPIKey(ctx context.Context) error {
	if _, err := r.client.ApiKeys.ListWithContext(ctx); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func resendTagValue(value string) string {
	return resendTagUnsafe.ReplaceAllString(value, "_")
}
