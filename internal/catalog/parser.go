package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/gitshopapp/storefront/internal/models"
)

// File is the catalog seed document (catalog.yaml).
type File struct {
	Shop     ShopConfig      `yaml:"shop"`
	Products []ProductConfig `yaml:"products"`
}

type ShopConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

type ProductConfig struct {
	Slug        string          `yaml:"slug" json:"slug"`
	Kind        string          `yaml:"kind" json:"kind"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description,omitempty"`
	Price       int64           `yaml:"price" json:"price"`
	CanPickup   *bool           `yaml:"can_pickup" json:"can_pickup,omitempty"`
	CanShip     *bool           `yaml:"can_ship" json:"can_ship,omitempty"`
	TempZone    string          `yaml:"temp_zone" json:"temp_zone"`
	StockQty    *int            `yaml:"stock_qty" json:"stock_qty,omitempty"`
	ImageURL    string          `yaml:"image_url" json:"image_url,omitempty"`
	Active      *bool           `yaml:"active" json:"active,omitempty"`
	SortOrder   int             `yaml:"sort_order" json:"sort_order,omitempty"`
	Variants    []VariantConfig `yaml:"variants" json:"variants,omitempty"`
}

type VariantConfig struct {
	Size     string `yaml:"size" json:"size"`
	Price    *int64 `yaml:"price" json:"price"`
	StockQty *int   `yaml:"stock_qty" json:"stock_qty,omitempty"`
	Active   *bool  `yaml:"active" json:"active,omitempty"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &file, nil
}

func (p *Parser) ParseFromString(content string) (*File, error) {
	return p.Parse([]byte(content))
}

// ToProducts converts the seed entries to catalog products. Flags left out of
// the file default to true.
func (f *File) ToProducts() []*models.Product {
	products := make([]*models.Product, 0, len(f.Products))
	for i, pc := range f.Products {
		products = append(products, pc.Product((i+1)*10))
	}
	return products
}

// Product converts a single entry. defaultSort is used when the entry has no
// sort order of its own.
func (pc ProductConfig) Product(defaultSort int) *models.Product {
	product := &models.Product{
		Slug:        pc.Slug,
		Kind:        models.ProductKind(pc.Kind),
		Name:        pc.Name,
		Description: pc.Description,
		Price:       pc.Price,
		CanPickup:   boolOrTrue(pc.CanPickup),
		CanShip:     boolOrTrue(pc.CanShip),
		TempZone:    models.TempZone(pc.TempZone),
		StockQty:    pc.StockQty,
		ImageURL:    pc.ImageURL,
		IsActive:    boolOrTrue(pc.Active),
		SortOrder:   pc.SortOrder,
	}
	if product.SortOrder == 0 {
		product.SortOrder = defaultSort
	}
	for j, vc := range pc.Variants {
		product.Variants = append(product.Variants, models.Variant{
			SizeLabel:     vc.Size,
			PriceOverride: vc.Price,
			StockQty:      vc.StockQty,
			IsActive:      boolOrTrue(vc.Active),
			SortOrder:     j,
		})
	}
	return product
}

func boolOrTrue(value *bool) bool {
	if value == nil {
		return true
	}
	return *value
}
