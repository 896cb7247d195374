package handlers

import (
	"net/http"
	"time"

	"github.com/gitshopapp/storefront/internal/auth"
	"github.com/gitshopapp/storefront/internal/session"
)

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Subject   string    `json:"subject"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AdminLogin checks the shop password. On success it starts a cookie session
// and also returns a bearer token for API clients.
func (h *Handlers) AdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		h.writeErrorCode(w, r, http.StatusBadRequest, "invalid_request_body")
		return
	}

	result, err := h.auth.Login(ctx, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}

	if _, err := h.sessionManager.CreateSession(ctx, w, &session.Data{Subject: result.Subject}); err != nil {
		h.loggerFromContext(ctx).Error("failed to create admin session", "error", err)
		h.writeErrorCode(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	h.loggerFromContext(ctx).Info("admin signed in", "subject", result.Subject)
	h.writeData(w, r, http.StatusOK, loginResponse{
		Subject:   result.Subject,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *Handlers) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.sessionManager.DestroySession(r.Context(), w, r)
	h.writeData(w, r, http.StatusOK, nil)
}

// RequireAdmin lets a request through when it carries a valid bearer token or
// an admin session cookie.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw, ok := auth.BearerToken(r.Header.Get("Authorization")); ok {
			subject, err := h.auth.VerifyToken(raw)
			if err != nil {
				h.loggerFromContext(ctx).Warn("rejected admin bearer token", "error", err)
				h.writeErrorCode(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx = session.WithSession(ctx, &session.Data{Subject: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if sess := h.adminSession(r); sess != nil {
			next.ServeHTTP(w, r.WithContext(session.WithSession(ctx, sess)))
			return
		}

		h.writeErrorCode(w, r, http.StatusUnauthorized, "unauthorized")
	})
}

func hasBearerToken(r *http.Request) bool {
	_, ok := auth.BearerToken(r.Header.Get("Authorization"))
	return ok
}
