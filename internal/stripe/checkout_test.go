package stripe

import (
	"testing"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/payments"
)

func TestSessionParams(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	params, err := sessionParams(&payments.CheckoutRequest{
		OrderID:     orderID,
		OrderNumber: "ORD-20250101-000001",
		Currency:    "JPY",
		Lines: []payments.CheckoutLine{
			{Name: "Gyoza", Qty: 2, UnitAmount: 1200},
			{Name: "Shipping", Qty: 1, UnitAmount: 1200},
		},
		SuccessURL:     "https://shop.example/complete?orderNo=ORD-20250101-000001",
		CancelURL:      "https://shop.example/cart",
		IdempotencyKey: "idem-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(params.LineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(params.LineItems))
	}
	first := params.LineItems[0]
	if *first.PriceData.Currency != "jpy" || *first.PriceData.UnitAmount != 1200 || *first.Quantity != 2 {
		t.Fatalf("unexpected first line item: %+v", first.PriceData)
	}
	if *params.ClientReferenceID != "ORD-20250101-000001" {
		t.Fatalf("client reference = %q", *params.ClientReferenceID)
	}
	if params.Metadata["order_id"] != orderID.String() {
		t.Fatalf("metadata = %+v", params.Metadata)
	}
	if params.CustomerEmail != nil {
		t.Fatal("customer email should be omitted when empty")
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "idem-1" {
		t.Fatal("idempotency key not set")
	}
}

func TestSessionParamsRequiresLines(t *testing.T) {
	t.Parallel()

	if _, err := sessionParams(&payments.CheckoutRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestEnvironmentForKey(t *testing.T) {
	t.Parallel()

	tests := map[string]models.Environment{
		"sk_live_abc": models.EnvironmentLive,
		"rk_live_abc": models.EnvironmentLive,
		"sk_test_abc": models.EnvironmentTest,
		"":            models.EnvironmentTest,
	}
	for key, want := range tests {
		if got := EnvironmentForKey(key); got != want {
			t.Fatalf("EnvironmentForKey(%q) = %q, want %q", key, got, want)
		}
	}
}
