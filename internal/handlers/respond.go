package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/services"
)

const maxRequestBodyBytes = 64 << 10

var errInvalidRequestBody = errors.New("invalid request body")

type apiResponse struct {
	OK            bool                      `json:"ok"`
	Data          any                       `json:"data,omitempty"`
	Error         string                    `json:"error,omitempty"`
	CurrentStatus models.OrderStatus        `json:"currentStatus,omitempty"`
	Result        services.ReconcileOutcome `json:"result,omitempty"`
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.loggerFromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	h.writeJSON(w, r, status, apiResponse{OK: true, Data: data})
}

func (h *Handlers) writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code string) {
	h.writeJSON(w, r, status, apiResponse{Error: code})
}

// writeServiceError maps a service error to its status and stable code.
// data, when set, is returned alongside the error.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error, data any) {
	code := services.ErrorCode(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		h.loggerFromContext(r.Context()).Error("request failed", "error", err, "code", code)
	}
	body := apiResponse{Error: code, Data: data}
	if current, ok := services.CurrentStatus(err); ok {
		body.CurrentStatus = current
	}
	h.writeJSON(w, r, status, body)
}

func statusForCode(code string) int {
	switch code {
	case "order_not_found":
		return http.StatusNotFound
	case "invalid_status":
		return http.StatusConflict
	case "invalid_credentials":
		return http.StatusUnauthorized
	case "checkout_create_failed":
		return http.StatusBadGateway
	case "order_create_failed", "internal_error":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body is accepted
// when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidRequestBody
	}
	return nil
}
