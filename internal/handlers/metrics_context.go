package handlers

import (
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/gitshopapp/storefront/internal/observability"
)

const (
	surfaceStorefront = "storefront"
	surfaceWebhook    = "webhook"
	surfaceAdmin      = "admin"
	surfaceOther      = "other"
)

// requestSurface names the part of the shop a path belongs to.
func requestSurface(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/"):
		return surfaceStorefront
	case strings.HasPrefix(path, "/webhooks/"):
		return surfaceWebhook
	case path == "/admin" || strings.HasPrefix(path, "/admin/"):
		return surfaceAdmin
	default:
		return surfaceOther
	}
}

// MetricsContext puts a meter carrying the request's route and surface in
// the context. Customer requests carry no identity attributes; admin requests
// carry the signed-in subject.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		surface := requestSurface(r.URL.Path)

		attrs := []attribute.Builder{
			attribute.String("http.request_id", requestIDFromRequest(r)),
			attribute.String("http.method", r.Method),
			attribute.String("storefront.surface", surface),
		}
		if route := routeLabel(r); route != "" {
			attrs = append(attrs, attribute.String("http.route", route))
		}
		switch surface {
		case surfaceWebhook:
			provider := strings.TrimPrefix(r.URL.Path, "/webhooks/")
			attrs = append(attrs, attribute.String("payment.provider", provider))
		case surfaceAdmin:
			if subject := h.adminSubject(r); subject != "" {
				attrs = append(attrs, attribute.String("user.username", subject))
			}
		}

		meter := sentry.NewMeter(ctx).WithCtx(ctx)
		meter.SetAttributes(attrs...)

		ctx = observability.WithMeter(ctx, meter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
