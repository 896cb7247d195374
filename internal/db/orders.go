package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/crypto"
	"github.com/gitshopapp/storefront/internal/models"
)

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

// TransitionError reports a conditional status update that matched no row
// because the order was not in an expected state.
type TransitionError struct {
	Current  OrderStatus
	Expected []OrderStatus
}

func (e *TransitionError) Error() string {
	expected := make([]string, 0, len(e.Expected))
	for _, status := range e.Expected {
		expected = append(expected, string(status))
	}
	return fmt.Sprintf("%s: current %s, expected %s", ErrInvalidStatusTransition, e.Current, strings.Join(expected, "/"))
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}

type OrderStore struct {
	pool   pgxDB
	crypto crypto.Encryptor
}

func NewOrderStore(pool *pgxpool.Pool, encryptor crypto.Encryptor) (*OrderStore, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}
	return &OrderStore{pool: pool, crypto: encryptor}, nil
}

// Create writes the order header, its items, its shipping address and its
// first payment row in one transaction. Generated ids, the order number and
// timestamps are written back onto order and payment.
func (s *OrderStore) Create(ctx context.Context, order *Order, payment *Payment) error {
	if order == nil || payment == nil {
		return fmt.Errorf("order and payment are required")
	}
	customerPhone, err := s.crypto.Encrypt(order.CustomerPhone)
	if err != nil {
		return fmt.Errorf("encrypt customer phone: %w", err)
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var createdAt pgtype.Timestamptz
		err := tx.QueryRow(ctx, `
			INSERT INTO orders (order_type, status, payment_method, temp_zone, subtotal, shipping_fee, total,
				currency, customer_name, customer_phone, customer_email, pickup_date, pickup_time, agreement_accepted)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::date, $13, $14)
			RETURNING id, order_no, created_at`,
			string(order.Type), string(order.Status), string(order.PaymentMethod), optionalText(string(order.TempZone)),
			order.Subtotal, order.ShippingFee, order.Total, order.Currency,
			order.CustomerName, customerPhone, optionalText(order.CustomerEmail),
			optionalText(order.PickupDate), optionalText(order.PickupTime), order.AgreementAccepted,
		).Scan(&order.ID, &order.OrderNumber, &createdAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		order.CreatedAt = createdAt.Time
		order.UpdatedAt = createdAt.Time

		for i := range order.Items {
			item := &order.Items[i]
			qty, err := intToInt32(item.Qty, "qty")
			if err != nil {
				return err
			}
			item.OrderID = order.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, product_id, variant_id, qty, unit_price, line_total,
					product_name, product_kind, product_temp_zone, size_label)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING id`,
				order.ID, item.ProductID, optionalUUID(item.VariantID), qty, item.UnitPrice, item.LineTotal,
				item.ProductName, string(item.ProductKind), string(item.ProductTempZone), optionalText(item.SizeLabel),
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if order.Address != nil {
			recipientPhone, err := s.crypto.Encrypt(order.Address.RecipientPhone)
			if err != nil {
				return fmt.Errorf("encrypt recipient phone: %w", err)
			}
			order.Address.OrderID = order.ID
			_, err = tx.Exec(ctx, `
				INSERT INTO shipping_addresses (order_id, postal_code, region, city, address1, address2,
					recipient_name, recipient_phone)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				order.ID, order.Address.PostalCode, order.Address.Region, order.Address.City,
				order.Address.Address1, optionalText(order.Address.Address2),
				order.Address.RecipientName, recipientPhone,
			)
			if err != nil {
				return fmt.Errorf("insert shipping address: %w", err)
			}
		}

		payment.OrderID = order.ID
		if err := insertPayment(ctx, tx, payment); err != nil {
			return err
		}
		order.Payments = []Payment{*payment}
		return nil
	})
}

const orderColumns = `id, order_no, order_type, status, payment_method, temp_zone, subtotal, shipping_fee,
	total, currency, customer_name, customer_phone, customer_email,
	to_char(pickup_date, 'YYYY-MM-DD'), pickup_time, agreement_accepted, admin_note,
	created_at, updated_at, paid_at, packed_at, shipped_at, fulfilled_at, cancelled_at`

func (s *OrderStore) scanOrder(row pgx.Row) (*Order, error) {
	var (
		o             Order
		orderType     string
		status        string
		paymentMethod string
		tempZone      pgtype.Text
		customerEmail pgtype.Text
		pickupDate    pgtype.Text
		pickupTime    pgtype.Text
		adminNote     pgtype.Text
		createdAt     pgtype.Timestamptz
		updatedAt     pgtype.Timestamptz
		paidAt        pgtype.Timestamptz
		packedAt      pgtype.Timestamptz
		shippedAt     pgtype.Timestamptz
		fulfilledAt   pgtype.Timestamptz
		cancelledAt   pgtype.Timestamptz
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &orderType, &status, &paymentMethod, &tempZone,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.Currency, &o.CustomerName, &o.CustomerPhone,
		&customerEmail, &pickupDate, &pickupTime, &o.AgreementAccepted, &adminNote,
		&createdAt, &updatedAt, &paidAt, &packedAt, &shippedAt, &fulfilledAt, &cancelledAt)
	if err != nil {
		return nil, err
	}

	o.Type = models.OrderType(orderType)
	o.Status = OrderStatus(status)
	o.PaymentMethod = models.PaymentMethod(paymentMethod)
	o.TempZone = models.TempZone(textValue(tempZone))
	o.CustomerPhone = s.decrypt(o.CustomerPhone)
	o.CustomerEmail = textValue(customerEmail)
	o.PickupDate = textValue(pickupDate)
	o.PickupTime = textValue(pickupTime)
	o.AdminNote = textValue(adminNote)
	o.CreatedAt = createdAt.Time
	o.UpdatedAt = updatedAt.Time
	o.PaidAt = timeValue(paidAt)
	o.PackedAt = timeValue(packedAt)
	o.ShippedAt = timeValue(shippedAt)
	o.FulfilledAt = timeValue(fulfilledAt)
	o.CancelledAt = timeValue(cancelledAt)
	return &o, nil
}

// decrypt returns the stored value unchanged when it is not ciphertext.
func (s *OrderStore) decrypt(value string) string {
	if value == "" {
		return ""
	}
	if plaintext, err := s.crypto.Decrypt(value); err == nil {
		return plaintext
	}
	return value
}

// GetByID loads an order with its items, address, shipments and payments.
func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := s.scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.loadDetails(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetByOrderNumber loads an order by its customer-facing number.
func (s *OrderStore) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	order, err := s.scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_no = $1`, orderNumber))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.loadDetails(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

type OrderFilter struct {
	Type   models.OrderType
	Status OrderStatus
	Limit  int
}

// List returns orders newest first with their items attached.
func (s *OrderStore) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	limitInt32, err := intToInt32(limit, "limit")
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR order_type = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`, string(filter.Type), string(filter.Status), limitInt32)
	if err != nil {
		return nil, err
	}
	var (
		orders []*Order
		ids    []uuid.UUID
	)
	for rows.Next() {
		order, err := s.scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, order)
		ids = append(ids, order.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := s.itemsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, order := range orders {
		order.Items = items[order.ID]
	}
	return orders, nil
}

func (s *OrderStore) loadDetails(ctx context.Context, order *Order) error {
	items, err := s.itemsByOrderIDs(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return err
	}
	order.Items = items[order.ID]

	if order.Type == models.OrderTypeShipping {
		address, err := s.address(ctx, order.ID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		order.Address = address
	}

	shipments, err := s.shipments(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Shipments = shipments

	payments, err := paymentsByOrderID(ctx, s.pool, order.ID)
	if err != nil {
		return err
	}
	order.Payments = payments
	return nil
}

func (s *OrderStore) itemsByOrderIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]OrderItem, error) {
	out := make(map[uuid.UUID][]OrderItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, qty, unit_price, line_total,
			product_name, product_kind, product_temp_zone, size_label
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY created_at, id`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      OrderItem
			variantID pgtype.UUID
			qty       int32
			kind      string
			tempZone  string
			sizeLabel pgtype.Text
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &variantID, &qty, &item.UnitPrice,
			&item.LineTotal, &item.ProductName, &kind, &tempZone, &sizeLabel); err != nil {
			return nil, err
		}
		item.VariantID = uuidValue(variantID)
		item.Qty = int(qty)
		item.ProductKind = models.ProductKind(kind)
		item.ProductTempZone = models.TempZone(tempZone)
		item.SizeLabel = textValue(sizeLabel)
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, rows.Err()
}

func (s *OrderStore) address(ctx context.Context, orderID uuid.UUID) (*ShippingAddress, error) {
	var (
		a        ShippingAddress
		address2 pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT order_id, postal_code, region, city, address1, address2, recipient_name, recipient_phone
		FROM shipping_addresses WHERE order_id = $1`, orderID,
	).Scan(&a.OrderID, &a.PostalCode, &a.Region, &a.City, &a.Address1, &address2, &a.RecipientName, &a.RecipientPhone)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	a.Address2 = textValue(address2)
	a.RecipientPhone = s.decrypt(a.RecipientPhone)
	return &a, nil
}

func (s *OrderStore) shipments(ctx context.Context, orderID uuid.UUID) ([]Shipment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, carrier, tracking_no, shipped_at
		FROM shipments WHERE order_id = $1 ORDER BY shipped_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []Shipment
	for rows.Next() {
		var sh Shipment
		if err := rows.Scan(&sh.ID, &sh.OrderID, &sh.Carrier, &sh.TrackingNo, &sh.ShippedAt); err != nil {
			return nil, err
		}
		shipments = append(shipments, sh)
	}
	return shipments, rows.Err()
}

// MarkPaid moves an online or reserved order to paid. paid_at keeps its first value.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, s.pool, orderID, `
		UPDATE orders
		SET status = 'paid', paid_at = COALESCE(paid_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending_payment', 'reserved')`,
		[]any{orderID}, StatusPendingPayment, StatusReserved)
}

// MarkPaidAtPickup records an in-store payment: the reserved pay-at-pickup
// order becomes paid and its on-site payment row succeeds, atomically.
func (s *OrderStore) MarkPaidAtPickup(ctx context.Context, orderID uuid.UUID, note string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := s.transition(ctx, tx, orderID, `
			UPDATE orders
			SET status = 'paid', paid_at = COALESCE(paid_at, NOW()),
			    admin_note = COALESCE($2, admin_note), updated_at = NOW()
			WHERE id = $1 AND status = 'reserved' AND payment_method = 'pay_at_pickup'`,
			[]any{orderID, optionalText(note)}, StatusReserved)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE payments
			SET status = 'succeeded', updated_at = NOW()
			WHERE order_id = $1 AND status IN ('init', 'link_created')`, orderID)
		return err
	})
}

func (s *OrderStore) MarkPacking(ctx context.Context, orderID uuid.UUID) error {
	return s.transition(ctx, s.pool, orderID, `
		UPDATE orders
		SET status = 'packing', packed_at = COALESCE(packed_at, NOW()), updated_at = NOW()
		WHERE id = $1 AND order_type = 'shipping' AND status = 'paid'`,
		[]any{orderID}, StatusPaid)
}

// MarkShipped records the shipment and moves the order to shipped in one transaction.
func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID, carrier, trackingNo string) (*Shipment, error) {
	shipment := &Shipment{OrderID: orderID, Carrier: carrier, TrackingNo: trackingNo}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := s.transition(ctx, tx, orderID, `
			UPDATE orders
			SET status = 'shipped', shipped_at = COALESCE(shipped_at, NOW()), updated_at = NOW()
			WHERE id = $1 AND order_type = 'shipping' AND status IN ('paid', 'packing')`,
			[]any{orderID}, StatusPaid, StatusPacking)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO shipments (order_id, carrier, tracking_no)
			VALUES ($1, $2, $3)
			RETURNING id, shipped_at`, orderID, carrier, trackingNo,
		).Scan(&shipment.ID, &shipment.ShippedAt)
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// MarkFulfilled closes a delivered shipment or a handed-over pickup. A reserved
// pickup handed over on site settles its on-site payment in the same transaction.
func (s *OrderStore) MarkFulfilled(ctx context.Context, orderID uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var previous string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&previous)
		if err != nil {
			if isNoRows(err) {
				return ErrNotFound
			}
			return err
		}
		err = s.transition(ctx, tx, orderID, `
			UPDATE orders
			SET status = 'fulfilled', fulfilled_at = COALESCE(fulfilled_at, NOW()), updated_at = NOW()
			WHERE id = $1 AND (
				(order_type = 'shipping' AND status = 'shipped') OR
				(order_type = 'pickup' AND status IN ('paid', 'reserved'))
			)`,
			[]any{orderID}, StatusShipped, StatusPaid, StatusReserved)
		if err != nil {
			return err
		}
		if OrderStatus(previous) != StatusReserved {
			return nil
		}
		_, err = tx.Exec(ctx, `
			UPDATE payments
			SET status = 'succeeded', updated_at = NOW()
			WHERE order_id = $1 AND provider = 'on_site' AND status IN ('init', 'link_created')`, orderID)
		return err
	})
}

func (s *OrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID, note string) error {
	return s.transition(ctx, s.pool, orderID, `
		UPDATE orders
		SET status = 'cancelled', cancelled_at = COALESCE(cancelled_at, NOW()),
		    admin_note = COALESCE($2, admin_note), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('fulfilled', 'cancelled')`,
		[]any{orderID, optionalText(note)},
		StatusReserved, StatusPendingPayment, StatusPaid, StatusPacking, StatusShipped)
}

// transition runs a conditional update. When nothing matched it reports
// ErrNotFound or a TransitionError carrying the order's current status.
func (s *OrderStore) transition(ctx context.Context, q dbtx, orderID uuid.UUID, query string, args []any, expected ...OrderStatus) error {
	cmdTag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var current string
	if err := q.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current); err != nil {
		if isNoRows(err) {
			return ErrNotFound
		}
		return err
	}
	return &TransitionError{Current: OrderStatus(current), Expected: expected}
}
