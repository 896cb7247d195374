package handlers

import (
	"net/http"
	"strings"

	"github.com/gitshopapp/storefront/internal/session"
)

// adminSession returns the admin session for r: the one RequireAdmin or
// SessionMiddleware already put in the context, else the cookie's. Customer
// requests have neither and get nil.
func (h *Handlers) adminSession(r *http.Request) *session.Data {
	if r == nil {
		return nil
	}
	if sess := session.GetSessionFromContext(r.Context()); sess != nil {
		return sess
	}
	if h == nil || h.sessionManager == nil {
		return nil
	}
	if _, err := r.Cookie(session.CookieName); err != nil {
		return nil
	}
	sess, err := h.sessionManager.GetSession(r.Context(), r)
	if err != nil {
		return nil
	}
	return sess
}

func (h *Handlers) adminSubject(r *http.Request) string {
	if sess := h.adminSession(r); sess != nil {
		return strings.TrimSpace(sess.Subject)
	}
	return ""
}
