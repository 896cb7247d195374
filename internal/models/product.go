package models

import "github.com/google/uuid"

type ProductKind string

const (
	ProductKindFrozenFood ProductKind = "frozen_food"
	ProductKindGoods      ProductKind = "goods"
)

type Product struct {
	ID          uuid.UUID   `json:"id"`
	Slug        string      `json:"slug"`
	Kind        ProductKind `json:"kind"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Price       int64       `json:"price"`
	CanPickup   bool        `json:"can_pickup"`
	CanShip     bool        `json:"can_ship"`
	TempZone    TempZone    `json:"temp_zone"`
	StockQty    *int        `json:"stock_qty,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	IsActive    bool        `json:"is_active"`
	SortOrder   int         `json:"sort_order"`
	Variants    []Variant   `json:"variants,omitempty"`
}

// Supports reports whether the product may be sold for the given order type.
func (p *Product) Supports(orderType OrderType) bool {
	switch orderType {
	case OrderTypeShipping:
		return p.CanShip
	case OrderTypePickup:
		return p.CanPickup
	}
	return false
}

type Variant struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	SizeLabel     string    `json:"size_label"`
	PriceOverride *int64    `json:"price_override,omitempty"`
	StockQty      *int      `json:"stock_qty,omitempty"`
	IsActive      bool      `json:"is_active"`
	SortOrder     int       `json:"sort_order"`
}
