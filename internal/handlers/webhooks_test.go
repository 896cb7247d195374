package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
	"github.com/gitshopapp/storefront/internal/services"
)

func TestWebhookAcknowledgesOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		provider models.Provider
		outcome  services.ReconcileOutcome
	}{
		{path: "/webhooks/stripe", provider: models.ProviderStripe, outcome: services.OutcomeProcessed},
		{path: "/webhooks/stripe", provider: models.ProviderStripe, outcome: services.OutcomeDuplicate},
		{path: "/webhooks/square", provider: models.ProviderSquare, outcome: services.OutcomePaymentNotFound},
		{path: "/webhooks/square", provider: models.ProviderSquare, outcome: services.OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider)+"/"+string(tt.outcome), func(t *testing.T) {
			t.Parallel()

			f := newHandlerFixture(t)
			f.webhooks.outcome = tt.outcome

			rec := f.do(httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(`{"id":"evt_1"}`)))
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			env := decodeEnvelope(t, rec)
			if !env.OK || env.Result != string(tt.outcome) {
				t.Fatalf("unexpected response: %s", rec.Body.String())
			}
			if f.webhooks.provider != tt.provider || string(f.webhooks.body) != `{"id":"evt_1"}` {
				t.Fatalf("unexpected delivery: provider=%q body=%q", f.webhooks.provider, f.webhooks.body)
			}
		})
	}
}

func TestWebhookRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid signature",
			err:        fmt.Errorf("stripe: %w", payments.ErrInvalidSignature),
			wantStatus: http.StatusForbidden,
			wantCode:   "invalid_signature",
		},
		{
			name:       "malformed event",
			err:        fmt.Errorf("square: %w", payments.ErrMalformedEvent),
			wantStatus: http.StatusBadRequest,
			wantCode:   "malformed_event",
		},
		{
			name:       "unknown provider",
			err:        fmt.Errorf("%w: square", services.ErrUnknownProvider),
			wantStatus: http.StatusNotFound,
			wantCode:   "unknown_provider",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newHandlerFixture(t)
			f.webhooks.err = tt.err

			rec := f.do(httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`)))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if env := decodeEnvelope(t, rec); env.Error != tt.wantCode {
				t.Fatalf("expected error %q, got %q", tt.wantCode, env.Error)
			}
		})
	}
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	body := strings.Repeat("a", maxWebhookBodyBytes+1)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if f.webhooks.body != nil {
		t.Fatalf("expected reconciler not to be called")
	}
}
