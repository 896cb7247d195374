package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gitshopapp/storefront/internal/models"
)

func TestMemoryProviderReceipts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider, err := NewMemoryProvider(time.Minute)
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}

	const orderNo = "ORD-20250101-000001"
	if _, err := provider.GetReceipt(ctx, orderNo); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before put, got %v", err)
	}

	receipt := &models.OrderReceipt{OrderNumber: orderNo, Status: models.StatusPendingPayment, Total: 3600}
	if err := provider.PutReceipt(ctx, receipt); err != nil {
		t.Fatalf("PutReceipt() error = %v", err)
	}
	receipt.Status = models.StatusPaid

	got, err := provider.GetReceipt(ctx, orderNo)
	if err != nil {
		t.Fatalf("GetReceipt() error = %v", err)
	}
	if got.Status != models.StatusPendingPayment || got.Total != 3600 {
		t.Fatalf("cached receipt changed with the caller's copy: %+v", got)
	}

	if err := provider.Invalidate(ctx, orderNo); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, err := provider.GetReceipt(ctx, orderNo); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after invalidate, got %v", err)
	}
}

func TestMemoryProviderExpiresReceipts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider, err := NewMemoryProvider(30 * time.Second)
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	provider.now = func() time.Time { return now }

	if err := provider.PutReceipt(ctx, &models.OrderReceipt{OrderNumber: "ORD-20250101-000002"}); err != nil {
		t.Fatalf("PutReceipt() error = %v", err)
	}
	now = now.Add(31 * time.Second)
	if _, err := provider.GetReceipt(ctx, "ORD-20250101-000002"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired receipt to be evicted, got %v", err)
	}
}

func TestMemoryProviderSkipsUnnumberedReceipts(t *testing.T) {
	t.Parallel()

	provider, err := NewMemoryProvider(time.Minute)
	if err != nil {
		t.Fatalf("NewMemoryProvider() error = %v", err)
	}
	if err := provider.PutReceipt(context.Background(), &models.OrderReceipt{}); err != nil {
		t.Fatalf("PutReceipt() error = %v", err)
	}
	if provider.receipts.Len() != 0 {
		t.Fatalf("expected nothing cached, got %d entries", provider.receipts.Len())
	}
}

func TestNewProviderRejectsUnknown(t *testing.T) {
	t.Parallel()

	if _, err := NewProvider(Config{Provider: "memcached"}); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}
