package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/cache"
	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/db"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProductSource struct {
	products map[uuid.UUID]*models.Product
	variants map[uuid.UUID]*models.Variant
}

func newFakeProductSource(products ...*models.Product) *fakeProductSource {
	source := &fakeProductSource{
		products: map[uuid.UUID]*models.Product{},
		variants: map[uuid.UUID]*models.Variant{},
	}
	for _, p := range products {
		source.products[p.ID] = p
		for i := range p.Variants {
			source.variants[p.Variants[i].ID] = &p.Variants[i]
		}
	}
	return source
}

func (f *fakeProductSource) ProductsByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Product, error) {
	var out []*models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProductSource) VariantsByIDs(_ context.Context, ids []uuid.UUID) ([]*models.Variant, error) {
	var out []*models.Variant
	for _, id := range ids {
		if v, ok := f.variants[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

var (
	gyozaID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	towelID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	cookieID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

func testCatalog() *catalog.PriceResolver {
	return catalog.NewPriceResolver(newFakeProductSource(
		&models.Product{ID: gyozaID, Name: "Gyoza", Kind: models.ProductKindFrozenFood, Price: 1200, CanShip: true, CanPickup: true, TempZone: models.TempZoneFrozen, IsActive: true},
		&models.Product{ID: towelID, Name: "Towel", Kind: models.ProductKindGoods, Price: 800, CanShip: true, CanPickup: true, TempZone: models.TempZoneAmbient, IsActive: true},
		&models.Product{ID: cookieID, Name: "Cookie", Kind: models.ProductKindGoods, Price: 500, CanShip: false, CanPickup: true, TempZone: models.TempZoneAmbient, IsActive: true},
	))
}

// fakeStore keeps orders and payments in memory and applies the same
// conditional transitions as the Postgres stores.
type fakeStore struct {
	mu              sync.Mutex
	orders          map[uuid.UUID]*models.Order
	payments        map[uuid.UUID]*models.Payment
	seq             int
	createErr       error
	getByNumberHits int
	markPaidHits    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:   map[uuid.UUID]*models.Order{},
		payments: map[uuid.UUID]*models.Payment{},
	}
}

func (f *fakeStore) Create(_ context.Context, order *models.Order, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.seq++
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	order.ID = uuid.New()
	order.OrderNumber = fmt.Sprintf("ORD-20250101-%06d", f.seq)
	order.CreatedAt = now
	payment.ID = uuid.New()
	payment.OrderID = order.ID
	payment.CreatedAt = now

	stored := *order
	f.orders[order.ID] = &stored
	storedPayment := *payment
	f.payments[payment.ID] = &storedPayment
	return nil
}

func (f *fakeStore) snapshot(o *models.Order) *models.Order {
	out := *o
	out.Payments = nil
	for _, p := range f.payments {
		if p.OrderID == o.ID {
			out.Payments = append(out.Payments, *p)
		}
	}
	out.Shipments = append([]models.Shipment(nil), o.Shipments...)
	return &out
}

func (f *fakeStore) GetByID(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return f.snapshot(o), nil
}

func (f *fakeStore) GetByOrderNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByNumberHits++
	for _, o := range f.orders {
		if o.OrderNumber == orderNumber {
			return f.snapshot(o), nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, filter db.OrderFilter) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if (filter.Type == "" || o.Type == filter.Type) && (filter.Status == "" || o.Status == filter.Status) {
			out = append(out, f.snapshot(o))
		}
	}
	return out, nil
}

func (f *fakeStore) transition(orderID uuid.UUID, allowed func(*models.Order) bool, next models.OrderStatus, expected ...models.OrderStatus) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, db.ErrNotFound
	}
	if !allowed(o) {
		return nil, &db.TransitionError{Current: o.Status, Expected: expected}
	}
	o.Status = next
	return o, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.transition(orderID, func(o *models.Order) bool {
		return o.Status == models.StatusPendingPayment || o.Status == models.StatusReserved
	}, models.StatusPaid, models.StatusPendingPayment, models.StatusReserved)
	if err != nil {
		return err
	}
	f.markPaidHits++
	if o.PaidAt == nil {
		now := time.Now()
		o.PaidAt = &now
	}
	return nil
}

func (f *fakeStore) MarkPaidAtPickup(_ context.Context, orderID uuid.UUID, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.transition(orderID, func(o *models.Order) bool {
		return o.Status == models.StatusReserved && o.IsPayAtPickup()
	}, models.StatusPaid, models.StatusReserved)
	if err != nil {
		return err
	}
	if note != "" {
		o.AdminNote = note
	}
	f.settleOnSite(orderID)
	return nil
}

func (f *fakeStore) settleOnSite(orderID uuid.UUID) {
	for _, p := range f.payments {
		if p.OrderID == orderID && (p.Status == models.PaymentInit || p.Status == models.PaymentLinkCreated) {
			p.Status = models.PaymentSucceeded
		}
	}
}

func (f *fakeStore) MarkPacking(_ context.Context, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.transition(orderID, func(o *models.Order) bool {
		return o.Type == models.OrderTypeShipping && o.Status == models.StatusPaid
	}, models.StatusPacking, models.StatusPaid)
	return err
}

func (f *fakeStore) MarkShipped(_ context.Context, orderID uuid.UUID, carrier, trackingNo string) (*models.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.transition(orderID, func(o *models.Order) bool {
		return o.Type == models.OrderTypeShipping && (o.Status == models.StatusPaid || o.Status == models.StatusPacking)
	}, models.StatusShipped, models.StatusPaid, models.StatusPacking)
	if err != nil {
		return nil, err
	}
	shipment := models.Shipment{ID: uuid.New(), OrderID: orderID, Carrier: carrier, TrackingNo: trackingNo, ShippedAt: time.Now()}
	o.Shipments = append(o.Shipments, shipment)
	return &shipment, nil
}

func (f *fakeStore) MarkFulfilled(_ context.Context, orderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous := models.OrderStatus("")
	if o, ok := f.orders[orderID]; ok {
		previous = o.Status
	}
	_, err := f.transition(orderID, func(o *models.Order) bool {
		if o.Type == models.OrderTypeShipping {
			return o.Status == models.StatusShipped
		}
		return o.Status == models.StatusPaid || o.Status == models.StatusReserved
	}, models.StatusFulfilled, models.StatusShipped, models.StatusPaid, models.StatusReserved)
	if err == nil && previous == models.StatusReserved {
		f.settleOnSite(orderID)
	}
	return err
}

func (f *fakeStore) MarkCancelled(_ context.Context, orderID uuid.UUID, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, err := f.transition(orderID, func(o *models.Order) bool {
		return !o.Status.Terminal()
	}, models.StatusCancelled, models.StatusReserved, models.StatusPendingPayment, models.StatusPaid, models.StatusPacking, models.StatusShipped)
	if err == nil && note != "" {
		o.AdminNote = note
	}
	return err
}

func (f *fakeStore) FindByProviderRef(_ context.Context, provider models.Provider, ref string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.Provider == provider && ref != "" && (p.ProviderOrderID == ref || p.ProviderCheckoutID == ref) {
			out := *p
			return &out, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) advancePayment(paymentID uuid.UUID, next models.PaymentStatus, apply func(*models.Payment)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return db.ErrNotFound
	}
	relink := next == models.PaymentLinkCreated && p.Status == models.PaymentLinkCreated
	if !relink && !p.Status.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", db.ErrPaymentTransitionSkipped, p.Status, next)
	}
	p.Status = next
	apply(p)
	return nil
}

func (f *fakeStore) MarkLinkCreated(_ context.Context, paymentID uuid.UUID, ref db.CheckoutRef) error {
	return f.advancePayment(paymentID, models.PaymentLinkCreated, func(p *models.Payment) {
		p.ProviderCheckoutID = ref.CheckoutID
		p.ProviderOrderID = ref.ProviderOrderID
		p.Environment = ref.Environment
	})
}

func (f *fakeStore) MarkSucceeded(_ context.Context, paymentID uuid.UUID, update db.SucceededUpdate) error {
	return f.advancePayment(paymentID, models.PaymentSucceeded, func(p *models.Payment) {
		p.ProviderPaymentID = update.ProviderPaymentID
		p.Environment = update.Environment
		p.RawWebhook = update.RawWebhook
	})
}

func (f *fakeStore) order(orderID uuid.UUID) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(f.orders[orderID])
}

// seed stores an order directly, bypassing intake.
func (f *fakeStore) seed(order models.Order, payment models.Payment) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.OrderNumber == "" {
		order.OrderNumber = fmt.Sprintf("ORD-20250101-%06d", f.seq)
	}
	f.orders[order.ID] = &order
	payment.ID = uuid.New()
	payment.OrderID = order.ID
	f.payments[payment.ID] = &payment
	return f.snapshot(&order)
}

type fakeCheckoutProvider struct {
	mu       sync.Mutex
	provider models.Provider
	err      error
	requests []*payments.CheckoutRequest
}

func (f *fakeCheckoutProvider) Provider() models.Provider {
	return f.provider
}

func (f *fakeCheckoutProvider) CreateCheckout(_ context.Context, req *payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.requests)
	return &payments.CheckoutSession{
		URL:             fmt.Sprintf("https://pay.example/%s/%d", req.OrderNumber, n),
		CheckoutID:      fmt.Sprintf("cs_%d", n),
		ProviderOrderID: fmt.Sprintf("po_%s", req.OrderNumber),
		Environment:     models.EnvironmentTest,
	}, nil
}

type notification struct {
	kind    string
	orderNo string
	carrier string
}

type fakeNotifier struct {
	mu    sync.Mutex
	err   error
	sends []notification
}

func (f *fakeNotifier) record(kind string, order *models.Order, carrier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, notification{kind: kind, orderNo: order.OrderNumber, carrier: carrier})
	return f.err
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	return f.record("order_confirmation", order, "")
}

func (f *fakeNotifier) SendPaymentConfirmation(_ context.Context, order *models.Order) error {
	return f.record("payment_confirmation", order, "")
}

func (f *fakeNotifier) SendOrderShipped(_ context.Context, order *models.Order, shipment *models.Shipment) error {
	return f.record("order_shipped", order, shipment.Carrier)
}

func (f *fakeNotifier) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sends))
	for _, send := range f.sends {
		out = append(out, send.kind)
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []models.OrderEvent
}

func (f *fakePublisher) PublishOrderEvent(_ context.Context, event models.OrderEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) types() []models.OrderEventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.OrderEventType, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.Type)
	}
	return out
}

type fakeEventLog struct {
	mu   sync.Mutex
	err  error
	seen map[string]bool
}

func (f *fakeEventLog) Record(_ context.Context, event *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	key := string(event.Provider) + "#" + event.EventID
	if f.seen[key] {
		return payments.ErrDuplicateEvent
	}
	f.seen[key] = true
	return nil
}

func (f *fakeEventLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

// fakeVerifier accepts deliveries whose X-Test-Signature header is "ok" and
// returns the event queued for the body.
type fakeVerifier struct {
	provider models.Provider
	events   map[string]*payments.ProviderEvent
}

func (f *fakeVerifier) Provider() models.Provider {
	return f.provider
}

func (f *fakeVerifier) VerifyAndParse(header http.Header, body []byte) (*payments.ProviderEvent, error) {
	if header.Get("X-Test-Signature") != "ok" {
		return nil, payments.ErrInvalidSignature
	}
	event, ok := f.events[string(body)]
	if !ok {
		return nil, payments.ErrMalformedEvent
	}
	out := *event
	out.Provider = f.provider
	out.Raw = body
	return &out, nil
}

type fakeOrderRefResolver struct {
	refs map[string]string
}

func (f *fakeOrderRefResolver) OrderRefForPayment(_ context.Context, paymentID string) (string, error) {
	ref, ok := f.refs[paymentID]
	if !ok {
		return "", errors.New("payment not found at provider")
	}
	return ref, nil
}

type fakeCache struct {
	mu       sync.Mutex
	receipts map[string]models.OrderReceipt
	deletes  []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{receipts: map[string]models.OrderReceipt{}}
}

func (f *fakeCache) GetReceipt(_ context.Context, orderNo string) (*models.OrderReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[orderNo]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return &receipt, nil
}

func (f *fakeCache) PutReceipt(_ context.Context, receipt *models.OrderReceipt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[receipt.OrderNumber] = *receipt
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, orderNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.receipts, orderNo)
	f.deletes = append(f.deletes, orderNo)
	return nil
}

func (f *fakeCache) Close() error {
	return nil
}
