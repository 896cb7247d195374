package db

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/gitshopapp/storefront/internal/models"
)

type Product = models.Product
type Variant = models.Variant
type Order = models.Order
type OrderItem = models.OrderItem
type OrderStatus = models.OrderStatus
type ShippingAddress = models.ShippingAddress
type Shipment = models.Shipment
type Payment = models.Payment
type PaymentStatus = models.PaymentStatus
type WebhookEvent = models.WebhookEvent

const (
	StatusReserved       = models.StatusReserved
	StatusPendingPayment = models.StatusPendingPayment
	StatusPaid           = models.StatusPaid
	StatusPacking        = models.StatusPacking
	StatusShipped        = models.StatusShipped
	StatusFulfilled      = models.StatusFulfilled
	StatusCancelled      = models.StatusCancelled
)

func intToInt32(value int, name string) (int32, error) {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return 0, fmt.Errorf("%s out of int32 range: %d", name, value)
	}
	return int32(value), nil
}

func optionalText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

func optionalInt(value *int) (pgtype.Int4, error) {
	if value == nil {
		return pgtype.Int4{}, nil
	}
	v, err := intToInt32(*value, "stock qty")
	if err != nil {
		return pgtype.Int4{}, err
	}
	return pgtype.Int4{Int32: v, Valid: true}, nil
}

func optionalInt64(value *int64) pgtype.Int8 {
	if value == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *value, Valid: true}
}

func optionalUUID(value *uuid.UUID) pgtype.UUID {
	if value == nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *value, Valid: true}
}

func textValue(value pgtype.Text) string {
	if !value.Valid {
		return ""
	}
	return value.String
}

func timeValue(value pgtype.Timestamptz) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func intValue(value pgtype.Int4) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int32)
	return &v
}

func uuidValue(value pgtype.UUID) *uuid.UUID {
	if !value.Valid {
		return nil
	}
	id := uuid.UUID(value.Bytes)
	return &id
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
