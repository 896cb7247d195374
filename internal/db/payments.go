package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/models"
)

// ErrPaymentTransitionSkipped is returned when a payment update would move the
// row backwards or sideways. Callers treat it as a no-op.
var ErrPaymentTransitionSkipped = errors.New("payment status transition skipped")

type PaymentStore struct {
	pool pgxDB
}

func NewPaymentStore(pool *pgxpool.Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// CheckoutRef carries the provider identifiers returned when a checkout is issued.
type CheckoutRef struct {
	CheckoutID      string
	ProviderOrderID string
	Environment     models.Environment
}

// SucceededUpdate carries what a completed-payment webhook learned.
type SucceededUpdate struct {
	ProviderPaymentID string
	Environment       models.Environment
	RawWebhook        []byte
}

func insertPayment(ctx context.Context, q dbtx, p *Payment) error {
	var createdAt pgtype.Timestamptz
	err := q.QueryRow(ctx, `
		INSERT INTO payments (order_id, provider, status, amount, currency, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		p.OrderID, string(p.Provider), string(p.Status), p.Amount, p.Currency, p.IdempotencyKey,
	).Scan(&p.ID, &createdAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = createdAt.Time
	return nil
}

const paymentColumns = `id, order_id, provider, status, amount, currency, provider_checkout_id,
	provider_order_id, provider_payment_id, idempotency_key, environment, raw_webhook, created_at, updated_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p           Payment
		provider    string
		status      string
		checkoutID  pgtype.Text
		orderRef    pgtype.Text
		paymentRef  pgtype.Text
		environment pgtype.Text
		raw         []byte
	)
	if err := row.Scan(&p.ID, &p.OrderID, &provider, &status, &p.Amount, &p.Currency, &checkoutID,
		&orderRef, &paymentRef, &p.IdempotencyKey, &environment, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Provider = models.Provider(provider)
	p.Status = PaymentStatus(status)
	p.ProviderCheckoutID = textValue(checkoutID)
	p.ProviderOrderID = textValue(orderRef)
	p.ProviderPaymentID = textValue(paymentRef)
	p.Environment = models.Environment(textValue(environment))
	p.RawWebhook = raw
	return &p, nil
}

func paymentsByOrderID(ctx context.Context, q dbtx, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// FindByProviderRef looks a payment up by the identifier a provider echoes
// back in webhooks: its order id, or the checkout (session / link) id.
func (s *PaymentStore) FindByProviderRef(ctx context.Context, provider models.Provider, ref string) (*Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE provider = $1 AND (provider_order_id = $2 OR provider_checkout_id = $2)
		ORDER BY created_at DESC
		LIMIT 1`, string(provider), ref))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// MarkLinkCreated stores the provider references of a freshly issued checkout.
// A payment that already has a link keeps its status but takes the new references.
func (s *PaymentStore) MarkLinkCreated(ctx context.Context, paymentID uuid.UUID, ref CheckoutRef) error {
	return s.advance(ctx, paymentID, models.PaymentLinkCreated, `
		UPDATE payments
		SET status = 'link_created', provider_checkout_id = $2, provider_order_id = $3,
		    environment = $4, updated_at = NOW()
		WHERE id = $1 AND status IN ('init', 'link_created')`,
		paymentID, optionalText(ref.CheckoutID), optionalText(ref.ProviderOrderID), optionalText(string(ref.Environment)))
}

// MarkSucceeded records a completed payment. Terminal rows are left untouched.
func (s *PaymentStore) MarkSucceeded(ctx context.Context, paymentID uuid.UUID, update SucceededUpdate) error {
	return s.advance(ctx, paymentID, models.PaymentSucceeded, `
		UPDATE payments
		SET status = 'succeeded', provider_payment_id = COALESCE($2, provider_payment_id),
		    environment = COALESCE($3, environment), raw_webhook = COALESCE($4, raw_webhook), updated_at = NOW()
		WHERE id = $1 AND status IN ('init', 'link_created')`,
		paymentID, optionalText(update.ProviderPaymentID), optionalText(string(update.Environment)), update.RawWebhook)
}

func (s *PaymentStore) advance(ctx context.Context, paymentID uuid.UUID, next PaymentStatus, query string, args ...any) error {
	cmdTag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var current string
	if err := s.pool.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1`, paymentID).Scan(&current); err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrPaymentTransitionSkipped, current, next)
}
