package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gitshopapp/storefront/internal/models"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsValidSlug reports whether slug is lower-case words joined by single hyphens.
func IsValidSlug(slug string) bool {
	return slugRegex.MatchString(slug)
}

func (v *Validator) Validate(file *File) error {
	if currency := strings.TrimSpace(file.Shop.Currency); currency != "" && !isCurrencyCode(currency) {
		return fmt.Errorf("shop currency must be a three letter lower-case code")
	}

	if len(file.Products) == 0 {
		return fmt.Errorf("at least one product is required")
	}

	slugs := make(map[string]bool)
	for i, product := range file.Products {
		if err := v.ValidateProduct(&product); err != nil {
			return fmt.Errorf("product %d validation failed: %w", i, err)
		}
		if slugs[product.Slug] {
			return fmt.Errorf("duplicate slug: %s", product.Slug)
		}
		slugs[product.Slug] = true
	}
	return nil
}

// ValidateProduct checks a single catalog entry.
func (v *Validator) ValidateProduct(product *ProductConfig) error {
	if !IsValidSlug(product.Slug) {
		return fmt.Errorf("product slug %q is invalid", product.Slug)
	}
	if strings.TrimSpace(product.Name) == "" {
		return fmt.Errorf("product name is required")
	}
	switch models.ProductKind(product.Kind) {
	case models.ProductKindFrozenFood, models.ProductKindGoods:
	default:
		return fmt.Errorf("product kind must be frozen_food or goods")
	}
	switch models.TempZone(product.TempZone) {
	case models.TempZoneAmbient, models.TempZoneFrozen:
	default:
		return fmt.Errorf("product temp_zone must be ambient or frozen")
	}
	if product.Price <= 0 {
		return fmt.Errorf("product price must be positive")
	}
	if product.StockQty != nil && *product.StockQty < 0 {
		return fmt.Errorf("product stock_qty cannot be negative")
	}
	if product.CanPickup != nil && product.CanShip != nil && !*product.CanPickup && !*product.CanShip {
		return fmt.Errorf("product must allow pickup or shipping")
	}

	sizes := make(map[string]bool)
	for i, variant := range product.Variants {
		size := strings.TrimSpace(variant.Size)
		if size == "" {
			return fmt.Errorf("variant %d size is required", i)
		}
		if sizes[size] {
			return fmt.Errorf("duplicate variant size: %s", size)
		}
		sizes[size] = true
		if variant.Price != nil && *variant.Price <= 0 {
			return fmt.Errorf("variant %s price must be positive", size)
		}
	}
	return nil
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
