package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
	"github.com/gitshopapp/storefront/internal/services"
)

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, models.ProviderStripe)
}

func (h *Handlers) SquareWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, models.ProviderSquare)
}

// webhook acknowledges every verified delivery with 200 so the provider stops
// retrying; the outcome is reported in the body.
func (h *Handlers) webhook(w http.ResponseWriter, r *http.Request, provider models.Provider) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx).With("provider", provider)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Warn("failed to read webhook body", "error", err)
		h.writeErrorCode(w, r, http.StatusBadRequest, "malformed_event")
		return
	}

	outcome, err := h.webhooks.Reconcile(ctx, provider, r.Header, body)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			logger.Warn("webhook signature rejected")
			h.writeErrorCode(w, r, http.StatusForbidden, "invalid_signature")
		case errors.Is(err, payments.ErrMalformedEvent):
			logger.Warn("malformed webhook event", "error", err)
			h.writeErrorCode(w, r, http.StatusBadRequest, "malformed_event")
		case errors.Is(err, services.ErrUnknownProvider):
			h.writeErrorCode(w, r, http.StatusNotFound, "unknown_provider")
		default:
			logger.Error("failed to process webhook", "error", err)
			h.writeErrorCode(w, r, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	h.writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Result: outcome})
}
