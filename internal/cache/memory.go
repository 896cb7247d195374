package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gitshopapp/storefront/internal/models"
)

const maxCachedReceipts = 5_000

type cachedReceipt struct {
	receipt   models.OrderReceipt
	expiresAt time.Time
}

// MemoryProvider keeps receipts in a bounded LRU local to the process.
type MemoryProvider struct {
	receipts *lru.Cache[string, cachedReceipt]
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryProvider(ttl time.Duration) (*MemoryProvider, error) {
	receipts, err := lru.New[string, cachedReceipt](maxCachedReceipts)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{receipts: receipts, ttl: ttl, now: time.Now}, nil
}

func (m *MemoryProvider) GetReceipt(_ context.Context, orderNo string) (*models.OrderReceipt, error) {
	key := ReceiptKey(orderNo)
	entry, ok := m.receipts.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(entry.expiresAt) {
		m.receipts.Remove(key)
		return nil, ErrNotFound
	}
	receipt := entry.receipt
	return &receipt, nil
}

// PutReceipt stores a copy of receipt; later changes by the caller are not seen.
func (m *MemoryProvider) PutReceipt(_ context.Context, receipt *models.OrderReceipt) error {
	if receipt == nil || receipt.OrderNumber == "" {
		return nil
	}
	m.receipts.Add(ReceiptKey(receipt.OrderNumber), cachedReceipt{
		receipt:   *receipt,
		expiresAt: m.now().Add(m.ttl),
	})
	return nil
}

func (m *MemoryProvider) Invalidate(_ context.Context, orderNo string) error {
	m.receipts.Remove(ReceiptKey(orderNo))
	return nil
}

func (m *MemoryProvider) Close() error {
	m.receipts.Purge()
	return nil
}
