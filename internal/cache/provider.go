// Package cache keeps recently viewed order receipts so confirmation page
// polling does not hit the database on every refresh.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitshopapp/storefront/internal/models"
)

const DefaultReceiptTTL = 30 * time.Second

var ErrNotFound = errors.New("receipt not cached")

// Provider stores order receipts keyed by order number.
type Provider interface {
	GetReceipt(ctx context.Context, orderNo string) (*models.OrderReceipt, error)
	PutReceipt(ctx context.Context, receipt *models.OrderReceipt) error
	Invalidate(ctx context.Context, orderNo string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
	// TTL bounds how stale a receipt may be. Zero means DefaultReceiptTTL.
	TTL time.Duration
}

func NewProvider(cfg Config) (Provider, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultReceiptTTL
	}
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider(ttl)
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString, ttl)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// ReceiptKey is the cache key of the receipt for orderNo.
func ReceiptKey(orderNo string) string {
	return "receipt:" + orderNo
}
