package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const mailgunBaseURL = "https://api.mailgun.net/v3"

type MailgunProvider struct {
	apiKey     string
	from       string
	domain     string
	baseURL    string
	httpClient *http.Client
}

func NewMailgunProvider(apiKey, domain, from, baseURL string, httpClient *http.Client) *MailgunProvider {
	if baseURL == "" {
		baseURL = mailgunBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MailgunProvider{
		apiKey:     apiKey,
		domain:     domain,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (m *MailgunProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", email.To)
	form.Set("subject", email.Subject)
	if email.Text != "" {
		form.Set("text", email.Text)
	}
	if email.HTML != "" {
		form.Set("html", email.HTML)
	}
	if email.Tag != "" {
		form.Set("o:tag", email.Tag)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("messages"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", m.apiKey)

	_, err = do(m.httpClient, req, "mailgun", describeMailgunError)
	return err
}

func (m *MailgunProvider) ValidateAPIKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint("domains"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)

	if _, err := do(m.httpClient, req, "mailgun", describeMailgunError); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func (m *MailgunProvider) endpoint(resource string) string {
	return fmt.Sprintf("%s/%s/%s", m.baseURL, url.PathEscape(m.domain), resource)
}

func describeMailgunError(_ int, body []byte) string {
	var errResp struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		return errResp.Message
	}
	return ""
}
