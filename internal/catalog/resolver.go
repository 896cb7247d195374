// Package catalog resolves order lines against the product catalog and
// loads the catalog seed file.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gitshopapp/storefront/internal/models"
)

const (
	MinQty = 1
	MaxQty = 99
)

var (
	ErrItemsRequired        = errors.New("at least one item is required")
	ErrQuantityOutOfRange   = errors.New("quantity out of range")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductUnavailable   = errors.New("product not available")
	ErrMixedTemperatureZone = errors.New("items span more than one temperature zone")
)

// ProductSource is the read side of the product store.
type ProductSource interface {
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Product, error)
	VariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Variant, error)
}

type LineRequest struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// Snapshot is the priced, denormalized copy of the requested lines.
type Snapshot struct {
	Items    []models.OrderItem
	Subtotal int64
	// TempZone is the shipment's zone; empty for pickup orders.
	TempZone models.TempZone
}

type PriceResolver struct {
	source ProductSource
}

func NewPriceResolver(source ProductSource) *PriceResolver {
	return &PriceResolver{source: source}
}

// Resolve validates every line for the given fulfillment path and prices it
// from the current catalog. It never writes.
func (r *PriceResolver) Resolve(ctx context.Context, orderType models.OrderType, lines []LineRequest) (*Snapshot, error) {
	if len(lines) == 0 {
		return nil, ErrItemsRequired
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	variantIDs := make([]uuid.UUID, 0)
	seenProducts := make(map[uuid.UUID]bool, len(lines))
	seenVariants := make(map[uuid.UUID]bool)
	for _, line := range lines {
		if line.Qty < MinQty || line.Qty > MaxQty {
			return nil, fmt.Errorf("%w: %d", ErrQuantityOutOfRange, line.Qty)
		}
		if !seenProducts[line.ProductID] {
			seenProducts[line.ProductID] = true
			productIDs = append(productIDs, line.ProductID)
		}
		if line.VariantID != nil && !seenVariants[*line.VariantID] {
			seenVariants[*line.VariantID] = true
			variantIDs = append(variantIDs, *line.VariantID)
		}
	}

	products, err := r.source.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	if len(products) != len(productIDs) {
		return nil, ErrProductNotFound
	}
	productsByID := make(map[uuid.UUID]*models.Product, len(products))
	for _, p := range products {
		productsByID[p.ID] = p
	}

	variantsByID := make(map[uuid.UUID]*models.Variant, len(variantIDs))
	if len(variantIDs) > 0 {
		variants, err := r.source.VariantsByIDs(ctx, variantIDs)
		if err != nil {
			return nil, fmt.Errorf("load variants: %w", err)
		}
		if len(variants) != len(variantIDs) {
			return nil, ErrProductNotFound
		}
		for _, v := range variants {
			variantsByID[v.ID] = v
		}
	}

	snapshot := &Snapshot{Items: make([]models.OrderItem, 0, len(lines))}
	zones := make(map[models.TempZone]bool)
	for _, line := range lines {
		product, ok := productsByID[line.ProductID]
		if !ok {
			return nil, ErrProductNotFound
		}
		if !product.IsActive || !product.Supports(orderType) {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.ID)
		}

		unitPrice := product.Price
		item := models.OrderItem{
			ProductID:       product.ID,
			Qty:             line.Qty,
			ProductName:     product.Name,
			ProductKind:     product.Kind,
			ProductTempZone: product.TempZone,
		}
		if line.VariantID != nil {
			variant, ok := variantsByID[*line.VariantID]
			if !ok || variant.ProductID != product.ID {
				return nil, ErrProductNotFound
			}
			if !variant.IsActive {
				return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, product.ID)
			}
			if variant.PriceOverride != nil {
				unitPrice = *variant.PriceOverride
			}
			variantID := variant.ID
			item.VariantID = &variantID
			item.SizeLabel = variant.SizeLabel
		}

		item.UnitPrice = unitPrice
		item.LineTotal = unitPrice * int64(line.Qty)
		snapshot.Subtotal += item.LineTotal
		snapshot.Items = append(snapshot.Items, item)
		zones[product.TempZone] = true
	}

	if orderType == models.OrderTypeShipping {
		if len(zones) > 1 {
			return nil, ErrMixedTemperatureZone
		}
		snapshot.TempZone = snapshot.Items[0].ProductTempZone
	}
	return snapshot, nil
}
