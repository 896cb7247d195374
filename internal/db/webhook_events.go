package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/payments"
)

var ErrDuplicateEvent = payments.ErrDuplicateEvent

type WebhookEventStore struct {
	pool pgxDB
}

func NewWebhookEventStore(pool *pgxpool.Pool) *WebhookEventStore {
	return &WebhookEventStore{pool: pool}
}

// Record appends the event to the log. The unique (provider, event_id) key
// makes the insert the single point of deduplication.
func (s *WebhookEventStore) Record(ctx context.Context, event *WebhookEvent) error {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
	cmdTag, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_events (provider, event_id, event_type, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, event_id) DO NOTHING`,
		string(event.Provider), event.EventID, event.EventType, []byte(event.Payload), event.ReceivedAt,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrDuplicateEvent
	}
	return nil
}
