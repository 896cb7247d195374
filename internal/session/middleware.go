package session

import (
	"context"
	"net/http"
)

type contextKey string

const ctxKey contextKey = "session"

// Middleware adds the request's session, when there is one, to its context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if data, err := m.GetSession(r.Context(), r); err == nil {
			r = r.WithContext(WithSession(r.Context(), data))
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, data *Data) context.Context {
	return context.WithValue(ctx, ctxKey, data)
}

// GetSessionFromContext retrieves session data from the request context.
func GetSessionFromContext(ctx context.Context) *Data {
	if ctx == nil {
		return nil
	}
	data, _ := ctx.Value(ctxKey).(*Data)
	return data
}
