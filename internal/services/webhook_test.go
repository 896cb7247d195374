package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

type webhookFixture struct {
	store     *fakeStore
	events    *fakeEventLog
	verifier  *fakeVerifier
	refs      *fakeOrderRefResolver
	cache     *fakeCache
	notifier  *fakeNotifier
	publisher *fakePublisher
	service   *WebhookReconciler
}

func newWebhookFixture() *webhookFixture {
	f := &webhookFixture{
		store:     newFakeStore(),
		events:    &fakeEventLog{},
		verifier:  &fakeVerifier{provider: models.ProviderSquare, events: map[string]*payments.ProviderEvent{}},
		refs:      &fakeOrderRefResolver{refs: map[string]string{}},
		cache:     newFakeCache(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	f.service = NewWebhookReconciler(WebhookReconcilerDeps{
		Verifiers:         []payments.WebhookVerifier{f.verifier},
		OrderRefResolvers: map[models.Provider]payments.OrderRefResolver{models.ProviderSquare: f.refs},
		Events:            f.events,
		Payments:          f.store,
		Orders:            f.store,
		Cache:             f.cache,
		Notifier:          f.notifier,
		Publisher:         f.publisher,
	}, testLogger())
	return f
}

// seedPending stores an online order awaiting payment whose checkout is
// known to the provider as providerOrderID.
func (f *webhookFixture) seedPending(providerOrderID string) *models.Order {
	return f.store.seed(models.Order{
		Type:          models.OrderTypeShipping,
		Status:        models.StatusPendingPayment,
		PaymentMethod: models.PaymentMethodOnline,
		CustomerEmail: "hanako@example.com",
		Total:         3600,
	}, models.Payment{
		Provider:        models.ProviderSquare,
		Status:          models.PaymentLinkCreated,
		Amount:          3600,
		ProviderOrderID: providerOrderID,
	})
}

func (f *webhookFixture) deliver(body string) (ReconcileOutcome, error) {
	header := http.Header{}
	header.Set("X-Test-Signature", "ok")
	return f.service.Reconcile(context.Background(), models.ProviderSquare, header, []byte(body))
}

func completed(eventID, orderRef, paymentID string) *payments.ProviderEvent {
	return &payments.ProviderEvent{
		EventID:          eventID,
		EventType:        "payment.updated",
		PaymentCompleted: true,
		PaymentID:        paymentID,
		ProviderOrderRef: orderRef,
		Environment:      models.EnvironmentTest,
	}
}

func TestReconcileCompletedPayment(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	order := f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	outcome, err := f.deliver("evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeProcessed {
		t.Fatalf("outcome = %q", outcome)
	}

	stored := f.store.order(order.ID)
	if stored.Status != models.StatusPaid || stored.PaidAt == nil {
		t.Fatalf("order not paid: %+v", stored)
	}
	payment := stored.LatestPayment()
	if payment.Status != models.PaymentSucceeded || payment.ProviderPaymentID != "pay_1" || payment.Environment != models.EnvironmentTest {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if got := f.notifier.kinds(); len(got) != 2 || got[0] != "payment_confirmation" || got[1] != "order_confirmation" {
		t.Fatalf("emails = %v", got)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != models.OrderEventPaid {
		t.Fatalf("published %v", got)
	}
	if len(f.cache.deletes) != 1 {
		t.Fatalf("cache invalidations = %v", f.cache.deletes)
	}
}

func TestReconcileDuplicateDelivery(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	first, err := f.deliver("evt-1")
	if err != nil || first != OutcomeProcessed {
		t.Fatalf("first delivery: %q, %v", first, err)
	}
	second, err := f.deliver("evt-1")
	if err != nil || second != OutcomeDuplicate {
		t.Fatalf("second delivery: %q, %v", second, err)
	}
	if f.store.markPaidHits != 1 {
		t.Fatalf("order marked paid %d times", f.store.markPaidHits)
	}
	if len(f.notifier.kinds()) != 2 {
		t.Fatalf("emails sent twice: %v", f.notifier.kinds())
	}
}

func TestReconcileNewEventForPaidOrder(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")
	f.verifier.events["evt-2"] = completed("evt-2", "sq_order_1", "pay_1")

	if _, err := f.deliver("evt-1"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	outcome, err := f.deliver("evt-2")
	if err != nil || outcome != OutcomeAlreadyPaid {
		t.Fatalf("expected already_paid, got %q, %v", outcome, err)
	}
	if len(f.notifier.kinds()) != 2 {
		t.Fatalf("emails = %v", f.notifier.kinds())
	}
}

func TestReconcileCancelledOrder(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	order := f.seedPending("sq_order_1")
	if err := f.store.MarkCancelled(context.Background(), order.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	outcome, err := f.deliver("evt-1")
	if err != nil || outcome != OutcomeOrderCancelled {
		t.Fatalf("expected order_cancelled, got %q, %v", outcome, err)
	}
	if f.store.order(order.ID).Status != models.StatusCancelled {
		t.Fatal("cancelled order must stay cancelled")
	}
	if len(f.notifier.kinds()) != 0 {
		t.Fatalf("no emails expected, got %v", f.notifier.kinds())
	}
}

func TestReconcileRecoversOrderRef(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	order := f.seedPending("sq_order_9")
	f.refs.refs["pay_9"] = "sq_order_9"
	f.verifier.events["evt-9"] = completed("evt-9", "", "pay_9")
	f.verifier.events["evt-lost"] = completed("evt-lost", "", "pay_unknown")

	outcome, err := f.deliver("evt-9")
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %q, %v", outcome, err)
	}
	if f.store.order(order.ID).Status != models.StatusPaid {
		t.Fatal("order not paid")
	}

	outcome, err = f.deliver("evt-lost")
	if err != nil || outcome != OutcomeOrderRefMissing {
		t.Fatalf("expected order_ref_missing, got %q, %v", outcome, err)
	}
}

func TestReconcileOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event *payments.ProviderEvent
		want  ReconcileOutcome
	}{
		{
			name:  "unrelated event type",
			event: &payments.ProviderEvent{EventID: "evt-x", EventType: "refund.created"},
			want:  OutcomeIgnored,
		},
		{
			name:  "unknown payment",
			event: completed("evt-x", "sq_order_other", "pay_x"),
			want:  OutcomePaymentNotFound,
		},
		{
			name: "declined card",
			event: &payments.ProviderEvent{
				EventID:          "evt-x",
				EventType:        "payment.updated",
				PaymentID:        "pay_declined",
				ProviderOrderRef: "sq_order_1",
			},
			want: OutcomeIgnored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newWebhookFixture()
			order := f.seedPending("sq_order_1")
			f.verifier.events["body"] = tt.event

			outcome, err := f.deliver("body")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if outcome != tt.want {
				t.Fatalf("outcome = %q, want %q", outcome, tt.want)
			}

			stored := f.store.order(order.ID)
			if stored.Status != models.StatusPendingPayment {
				t.Fatalf("order status changed to %q", stored.Status)
			}
			if status := stored.LatestPayment().Status; status != models.PaymentLinkCreated {
				t.Fatalf("payment status changed to %q", status)
			}
			if len(f.notifier.kinds()) != 0 || len(f.publisher.types()) != 0 {
				t.Fatal("no side effects expected")
			}
		})
	}
}

func TestReconcileDeclineThenComplete(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	order := f.seedPending("sq_order_1")
	f.verifier.events["evt-declined"] = &payments.ProviderEvent{
		EventID:          "evt-declined",
		EventType:        "payment.updated",
		PaymentID:        "pay_declined",
		ProviderOrderRef: "sq_order_1",
	}
	f.verifier.events["evt-ok"] = completed("evt-ok", "sq_order_1", "pay_ok")

	outcome, err := f.deliver("evt-declined")
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("expected ignored, got %q, %v", outcome, err)
	}
	if status := f.store.order(order.ID).LatestPayment().Status; status != models.PaymentLinkCreated {
		t.Fatalf("declined attempt moved payment to %q", status)
	}

	outcome, err = f.deliver("evt-ok")
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %q, %v", outcome, err)
	}
	stored := f.store.order(order.ID)
	if stored.Status != models.StatusPaid {
		t.Fatalf("order status = %q", stored.Status)
	}
	payment := stored.LatestPayment()
	if payment.Status != models.PaymentSucceeded || payment.ProviderPaymentID != "pay_ok" {
		t.Fatalf("payment out of step with order: %+v", payment)
	}
}

func TestReconcileConcurrentDuplicateDelivery(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	order := f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	const deliveries = 2
	outcomes := make(chan ReconcileOutcome, deliveries)
	var wg sync.WaitGroup
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := f.deliver("evt-1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			outcomes <- outcome
		}()
	}
	wg.Wait()
	close(outcomes)

	counts := map[ReconcileOutcome]int{}
	for outcome := range outcomes {
		counts[outcome]++
	}
	if counts[OutcomeProcessed] != 1 || counts[OutcomeDuplicate] != 1 {
		t.Fatalf("outcomes = %v", counts)
	}
	if f.store.markPaidHits != 1 {
		t.Fatalf("order marked paid %d times", f.store.markPaidHits)
	}
	if got := f.notifier.kinds(); len(got) != 2 {
		t.Fatalf("emails = %v", got)
	}
	if f.store.order(order.ID).Status != models.StatusPaid {
		t.Fatal("order not paid")
	}
}

func TestReconcileRejections(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	_, err := f.service.Reconcile(context.Background(), models.ProviderSquare, http.Header{}, []byte("evt-1"))
	if !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	if _, err := f.deliver("not json"); !errors.Is(err, payments.ErrMalformedEvent) {
		t.Fatalf("expected ErrMalformedEvent, got %v", err)
	}

	header := http.Header{}
	header.Set("X-Test-Signature", "ok")
	if _, err := f.service.Reconcile(context.Background(), models.ProviderStripe, header, []byte("evt-1")); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}

	if f.events.count() != 0 {
		t.Fatal("rejected deliveries must not be recorded")
	}
	if f.store.markPaidHits != 0 {
		t.Fatal("rejected deliveries must not change orders")
	}
}

func TestReconcileContinuesWhenEventLogFails(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	f.events.err = errors.New("table unavailable")
	order := f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	outcome, err := f.deliver("evt-1")
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %q, %v", outcome, err)
	}
	if f.store.order(order.ID).Status != models.StatusPaid {
		t.Fatal("order not paid")
	}
}

func TestReconcileSideEffectFailuresStillProcess(t *testing.T) {
	t.Parallel()

	f := newWebhookFixture()
	f.notifier.err = errors.New("smtp down")
	f.publisher.err = errors.New("queue down")
	order := f.seedPending("sq_order_1")
	f.verifier.events["evt-1"] = completed("evt-1", "sq_order_1", "pay_1")

	outcome, err := f.deliver("evt-1")
	if err != nil || outcome != OutcomeProcessed {
		t.Fatalf("expected processed, got %q, %v", outcome, err)
	}
	if f.store.order(order.ID).Status != models.StatusPaid {
		t.Fatal("order not paid")
	}
}
