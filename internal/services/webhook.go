package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/observability"
	"github.com/gitshopapp/storefront/internal/payments"
)

const orderRefLookupTimeout = 5 * time.Second

// ReconcileOutcome is the acknowledged result of one webhook delivery.
type ReconcileOutcome string

const (
	OutcomeProcessed       ReconcileOutcome = "processed"
	OutcomeDuplicate       ReconcileOutcome = "already_processed"
	OutcomeIgnored         ReconcileOutcome = "ignored"
	OutcomeOrderRefMissing ReconcileOutcome = "order_ref_missing"
	OutcomePaymentNotFound ReconcileOutcome = "payment_not_found"
	OutcomeAlreadyPaid     ReconcileOutcome = "already_paid"
	OutcomeOrderCancelled  ReconcileOutcome = "order_cancelled"
	OutcomeFailed          ReconcileOutcome = "failed"
)

type WebhookReconcilerDeps struct {
	Verifiers         []payments.WebhookVerifier
	OrderRefResolvers map[models.Provider]payments.OrderRefResolver
	Events            WebhookEventLog
	Payments          paymentStore
	Orders            orderStore
	Cache             cache.Provider
	Notifier          OrderNotifier
	Publisher         OrderEventPublisher
}

// WebhookReconciler turns verified provider deliveries into payment and
// order state changes.
type WebhookReconciler struct {
	verifiers map[models.Provider]payments.WebhookVerifier
	resolvers map[models.Provider]payments.OrderRefResolver
	events    WebhookEventLog
	payments  paymentStore
	orders    orderStore
	cache     cache.Provider
	notifier  OrderNotifier
	publisher OrderEventPublisher
	logger    *slog.Logger
}

func NewWebhookReconciler(deps WebhookReconcilerDeps, logger *slog.Logger) *WebhookReconciler {
	verifiers := make(map[models.Provider]payments.WebhookVerifier, len(deps.Verifiers))
	for _, verifier := range deps.Verifiers {
		if verifier != nil {
			verifiers[verifier.Provider()] = verifier
		}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopOrderNotifier{}
	}
	if deps.Publisher == nil {
		deps.Publisher = noopOrderEventPublisher{}
	}
	return &WebhookReconciler{
		verifiers: verifiers,
		resolvers: deps.OrderRefResolvers,
		events:    deps.Events,
		payments:  deps.Payments,
		orders:    deps.Orders,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    logger,
	}
}

// Reconcile processes one raw delivery. It returns an error only when the
// delivery is rejected: ErrUnknownProvider, or payments.ErrInvalidSignature /
// payments.ErrMalformedEvent from the provider adapter. Every other result is
// an outcome to acknowledge.
func (r *WebhookReconciler) Reconcile(ctx context.Context, provider models.Provider, header http.Header, body []byte) (ReconcileOutcome, error) {
	span := sentry.StartSpan(
		ctx,
		"service.webhook.reconcile",
		sentry.WithOpName("service.webhook"),
		sentry.WithDescription("Reconcile"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	ctx, logger := logging.With(ctx, r.logger, "provider", provider)
	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("provider", string(provider)))
	meter.Count("payment.webhook.received", 1)
	finish := func(outcome ReconcileOutcome) (ReconcileOutcome, error) {
		meter.Count("payment.webhook.outcome", 1, sentry.WithAttributes(
			attribute.String("outcome", string(outcome)),
		))
		span.Status = sentry.SpanStatusOK
		return outcome, nil
	}

	verifier, ok := r.verifiers[provider]
	if !ok {
		observability.CountReason(meter, "payment.webhook.rejected", "unknown_provider")
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	event, err := verifier.VerifyAndParse(header, body)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, payments.ErrInvalidSignature) {
			reason = "invalid_signature"
		}
		observability.CountReason(meter, "payment.webhook.rejected", reason)
		logger.Warn("rejected webhook delivery", "error", err)
		return "", err
	}
	ctx, logger = logging.With(ctx, logger, "event_id", event.EventID, "event_type", event.EventType)

	err = r.events.Record(ctx, &models.WebhookEvent{
		Provider:  provider,
		EventID:   event.EventID,
		EventType: event.EventType,
		Payload:   json.RawMessage(event.Raw),
	})
	switch {
	case errors.Is(err, payments.ErrDuplicateEvent):
		logger.Info("webhook event already processed")
		return finish(OutcomeDuplicate)
	case err != nil:
		// Acknowledge anyway; a redelivery would hit the same write error.
		observability.CountReason(meter, "payment.webhook.side_effect_failed", "event_log")
		logger.Error("failed to record webhook event", "error", err)
	}

	if !event.PaymentCompleted {
		logger.Debug("ignoring webhook event")
		return finish(OutcomeIgnored)
	}

	orderRef := r.orderRef(ctx, logger, event)
	if orderRef == "" {
		logger.Error("webhook event has no provider order reference", "payment_id", event.PaymentID)
		return finish(OutcomeOrderRefMissing)
	}
	logger = logger.With("order_ref", orderRef)

	payment, err := r.payments.FindByProviderRef(ctx, provider, orderRef)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Error("no payment matches webhook event")
			return finish(OutcomePaymentNotFound)
		}
		logger.Error("failed to look up payment", "error", err)
		return finish(OutcomeFailed)
	}
	ctx, logger = logging.With(ctx, logger, "payment_id", payment.ID, "order_id", payment.OrderID)

	err = r.payments.MarkSucceeded(ctx, payment.ID, db.SucceededUpdate{
		ProviderPaymentID: event.PaymentID,
		Environment:       event.Environment,
		RawWebhook:        event.Raw,
	})
	if err != nil {
		if !errors.Is(err, db.ErrPaymentTransitionSkipped) {
			logger.Error("failed to mark payment succeeded", "error", err)
			return finish(OutcomeFailed)
		}
		logger.Warn("payment status not advanced", "error", err)
	}

	if err := r.orders.MarkPaid(ctx, payment.OrderID); err != nil {
		current, ok := CurrentStatus(err)
		switch {
		case ok && current == models.StatusCancelled:
			logger.Warn("payment completed for a cancelled order")
			return finish(OutcomeOrderCancelled)
		case ok:
			logger.Info("order already past payment", "status", current)
			return finish(OutcomeAlreadyPaid)
		default:
			logger.Error("failed to mark order paid", "error", err)
			return finish(OutcomeFailed)
		}
	}
	meter.Count("payment.webhook.order_paid", 1)
	logger.Info("order marked paid")

	r.afterPaid(ctx, logger, payment.OrderID)
	return finish(OutcomeProcessed)
}

// orderRef returns the provider order reference of event, asking the
// provider when the payload omits it. Lookup failures yield "".
func (r *WebhookReconciler) orderRef(ctx context.Context, logger *slog.Logger, event *payments.ProviderEvent) string {
	if event.ProviderOrderRef != "" {
		return event.ProviderOrderRef
	}
	resolver := r.resolvers[event.Provider]
	if resolver == nil || event.PaymentID == "" {
		return ""
	}
	lookupCtx, cancel := context.WithTimeout(ctx, orderRefLookupTimeout)
	defer cancel()
	ref, err := resolver.OrderRefForPayment(lookupCtx, event.PaymentID)
	if err != nil {
		logger.Error("failed to recover order reference", "error", err, "payment_id", event.PaymentID)
		return ""
	}
	return ref
}

// afterPaid runs the post-commit side effects of a paid transition. Failures
// are logged and counted only.
func (r *WebhookReconciler) afterPaid(ctx context.Context, logger *slog.Logger, orderID uuid.UUID) {
	meter := observability.MeterFromContext(ctx)
	sideEffectFailed := func(reason string, err error) {
		observability.CountReason(meter, "payment.webhook.side_effect_failed", reason)
		logger.Error("webhook side effect failed", "error", err, "side_effect", reason)
	}

	order, err := r.orders.GetByID(ctx, orderID)
	if err != nil {
		sideEffectFailed("load_order", err)
		return
	}
	invalidateOrder(ctx, r.cache, logger, order.OrderNumber)

	if err := r.notifier.SendPaymentConfirmation(ctx, order); err != nil {
		sideEffectFailed("payment_confirmation_email", err)
	}
	if err := r.notifier.SendOrderConfirmation(ctx, order); err != nil {
		sideEffectFailed("order_confirmation_email", err)
	}
	publishOrderEvent(ctx, r.publisher, logger, models.OrderEventPaid, order)
}
