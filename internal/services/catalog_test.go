package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/models"
)

type fakeProductCatalog struct {
	products []*models.Product
	listErr  error
	lastKind models.ProductKind
	active   bool
}

func (f *fakeProductCatalog) List(_ context.Context, kind models.ProductKind, activeOnly bool) ([]*models.Product, error) {
	f.lastKind = kind
	f.active = activeOnly
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.products, nil
}

func (f *fakeProductCatalog) Upsert(_ context.Context, product *models.Product) error {
	for i, existing := range f.products {
		if existing.Slug == product.Slug {
			product.ID = existing.ID
			f.products[i] = product
			return nil
		}
	}
	product.ID = uuid.New()
	f.products = append(f.products, product)
	return nil
}

func TestCatalogList(t *testing.T) {
	t.Parallel()

	store := &fakeProductCatalog{}
	service := NewCatalogService(store, testLogger())

	if _, err := service.ListActive(context.Background(), "frozen_food"); err != nil {
		t.Fatalf("list active: %v", err)
	}
	if store.lastKind != models.ProductKindFrozenFood || !store.active {
		t.Fatalf("unexpected query: kind=%q active=%v", store.lastKind, store.active)
	}

	if _, err := service.ListAll(context.Background(), ""); err != nil {
		t.Fatalf("list all: %v", err)
	}
	if store.lastKind != "" || store.active {
		t.Fatalf("unexpected query: kind=%q active=%v", store.lastKind, store.active)
	}

	if _, err := service.ListActive(context.Background(), "drinks"); !errors.Is(err, ErrInvalidProduct) {
		t.Fatalf("expected ErrInvalidProduct, got %v", err)
	}

	store.listErr = errors.New("db down")
	if _, err := service.ListActive(context.Background(), ""); err == nil || ErrorCode(err) != "internal_error" {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestCatalogUpsert(t *testing.T) {
	t.Parallel()

	store := &fakeProductCatalog{}
	service := NewCatalogService(store, testLogger())
	price := int64(1500)

	created, err := service.Upsert(context.Background(), catalog.ProductConfig{
		Slug:     " pork-gyoza ",
		Kind:     "frozen_food",
		Name:     "Pork gyoza",
		Price:    1200,
		TempZone: "frozen",
		Variants: []catalog.VariantConfig{{Size: "30 pcs", Price: &price}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if created.Slug != "pork-gyoza" || !created.IsActive || !created.CanShip || !created.CanPickup {
		t.Fatalf("unexpected product: %+v", created)
	}
	if len(created.Variants) != 1 || created.Variants[0].PriceOverride == nil || *created.Variants[0].PriceOverride != 1500 {
		t.Fatalf("unexpected variants: %+v", created.Variants)
	}

	updated, err := service.Upsert(context.Background(), catalog.ProductConfig{
		Slug:     "pork-gyoza",
		Kind:     "frozen_food",
		Name:     "Pork gyoza (large)",
		Price:    1400,
		TempZone: "frozen",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != created.ID || len(store.products) != 1 {
		t.Fatalf("expected update in place, got %d products", len(store.products))
	}

	_, err = service.Upsert(context.Background(), catalog.ProductConfig{Slug: "Bad Slug", Kind: "goods", Name: "x", Price: 1, TempZone: "ambient"})
	if !errors.Is(err, ErrInvalidProduct) || ErrorCode(err) != "invalid_product" {
		t.Fatalf("expected invalid_product, got %v", err)
	}
}
