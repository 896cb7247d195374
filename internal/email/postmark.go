package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

type PostmarkProvider struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody,omitempty"`
	HtmlBody      string `json:"HtmlBody,omitempty"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

func NewPostmarkProvider(apiKey, from, baseURL string, httpClient *http.Client) *PostmarkProvider {
	if baseURL == "" {
		baseURL = postmarkBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PostmarkProvider{
		apiKey:     apiKey,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	payload, err := json.Marshal(postmarkEmail{
		From:          p.from,
		To:            email.To,
		Subject:       email.Subject,
		TextBody:      email.Text,
		HtmlBody:      email.HTML,
		Tag:           email.Tag,
		MessageStream: "outbound",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/email", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := do(p.httpClient, req, "postmark", describePostmarkError)
	if err != nil {
		return err
	}

	var result postmarkResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse postmark response: %w", err)
	}
	if result.ErrorCode != 0 {
		return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
	}
	return nil
}

func (p *PostmarkProvider) ValidateAPIKey(ctx context.Context) error {
	req, err := p.newRequest(ctx, http.MethodGet, "/server", nil)
	if err != nil {
		return err
	}
	if _, err := do(p.httpClient, req, "postmark", describePostmarkError); err != nil {
		return fmt.Errorf("invalid API key: %w", err)
	}
	return nil
}

func (p *PostmarkProvider) newRequest(ctx context.Context, method, path string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, p.baseURL+path, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)
	return req, nil
}

func describePostmarkError(status int, body []byte) string {
	var errResp postmarkResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.ErrorCode != 0 {
		return fmt.Sprintf("(%d/%d) %s", status, errResp.ErrorCode, errResp.Message)
	}
	return ""
}
