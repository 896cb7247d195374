package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gitshopapp/storefront/internal/models"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productColumns = `id, slug, kind, name, description, price, can_pickup, can_ship,
	temp_zone, stock_qty, image_url, is_active, sort_order`

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p           Product
		kind        string
		tempZone    string
		description pgtype.Text
		stockQty    pgtype.Int4
		imageURL    pgtype.Text
		sortOrder   int32
	)
	if err := row.Scan(&p.ID, &p.Slug, &kind, &p.Name, &description, &p.Price, &p.CanPickup, &p.CanShip,
		&tempZone, &stockQty, &imageURL, &p.IsActive, &sortOrder); err != nil {
		return nil, err
	}
	p.Kind = models.ProductKind(kind)
	p.TempZone = models.TempZone(tempZone)
	p.Description = textValue(description)
	p.StockQty = intValue(stockQty)
	p.ImageURL = textValue(imageURL)
	p.SortOrder = int(sortOrder)
	return &p, nil
}

// ProductsByIDs returns every product whose id is in ids, active or not.
func (s *ProductStore) ProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// VariantsByIDs returns every variant whose id is in ids, active or not.
func (s *ProductStore) VariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]*Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, size_label, price_override, stock_qty, is_active, sort_order
		FROM product_variants
		WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVariants(rows)
}

func scanVariants(rows pgx.Rows) ([]*Variant, error) {
	var variants []*Variant
	for rows.Next() {
		var (
			v             Variant
			priceOverride pgtype.Int8
			stockQty      pgtype.Int4
			sortOrder     int32
		)
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SizeLabel, &priceOverride, &stockQty, &v.IsActive, &sortOrder); err != nil {
			return nil, err
		}
		if priceOverride.Valid {
			price := priceOverride.Int64
			v.PriceOverride = &price
		}
		v.StockQty = intValue(stockQty)
		v.SortOrder = int(sortOrder)
		variants = append(variants, &v)
	}
	return variants, rows.Err()
}

// List returns products ordered for display. When activeOnly is set,
// inactive products and variants are omitted. An empty kind matches all kinds.
func (s *ProductStore) List(ctx context.Context, kind models.ProductKind, activeOnly bool) ([]*Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE ($1 = '' OR kind = $1) AND (NOT $2 OR is_active)
		ORDER BY sort_order, name`, string(kind), activeOnly)
	if err != nil {
		return nil, err
	}
	var (
		products []*Product
		ids      []uuid.UUID
		byID     = map[uuid.UUID]*Product{}
	)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		products = append(products, p)
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return products, nil
	}

	variantRows, err := s.pool.Query(ctx, `
		SELECT id, product_id, size_label, price_override, stock_qty, is_active, sort_order
		FROM product_variants
		WHERE product_id = ANY($1::uuid[]) AND (NOT $2 OR is_active)
		ORDER BY sort_order, size_label`, uuidStrings(ids), activeOnly)
	if err != nil {
		return nil, err
	}
	defer variantRows.Close()
	variants, err := scanVariants(variantRows)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if p, ok := byID[v.ProductID]; ok {
			p.Variants = append(p.Variants, *v)
		}
	}
	return products, nil
}

// Upsert inserts or updates a product keyed by slug, replacing its variants
// by size label. The product id is written back onto p.
func (s *ProductStore) Upsert(ctx context.Context, p *Product) error {
	stockQty, err := optionalInt(p.StockQty)
	if err != nil {
		return err
	}
	sortOrder, err := intToInt32(p.SortOrder, "sort order")
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO products (slug, kind, name, description, price, can_pickup, can_ship,
				temp_zone, stock_qty, image_url, is_active, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (slug) DO UPDATE SET
				kind = EXCLUDED.kind, name = EXCLUDED.name, description = EXCLUDED.description,
				price = EXCLUDED.price, can_pickup = EXCLUDED.can_pickup, can_ship = EXCLUDED.can_ship,
				temp_zone = EXCLUDED.temp_zone, stock_qty = EXCLUDED.stock_qty,
				image_url = EXCLUDED.image_url, is_active = EXCLUDED.is_active,
				sort_order = EXCLUDED.sort_order, updated_at = NOW()
			RETURNING id`,
			p.Slug, string(p.Kind), p.Name, optionalText(p.Description), p.Price, p.CanPickup, p.CanShip,
			string(p.TempZone), stockQty, optionalText(p.ImageURL), p.IsActive, sortOrder,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Slug, err)
		}

		for i := range p.Variants {
			v := &p.Variants[i]
			variantStock, err := optionalInt(v.StockQty)
			if err != nil {
				return err
			}
			variantSort, err := intToInt32(v.SortOrder, "variant sort order")
			if err != nil {
				return err
			}
			v.ProductID = p.ID
			err = tx.QueryRow(ctx, `
				INSERT INTO product_variants (product_id, size_label, price_override, stock_qty, is_active, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (product_id, size_label) DO UPDATE SET
					price_override = EXCLUDED.price_override, stock_qty = EXCLUDED.stock_qty,
					is_active = EXCLUDED.is_active, sort_order = EXCLUDED.sort_order
				RETURNING id`,
				p.ID, v.SizeLabel, optionalInt64(v.PriceOverride), variantStock, v.IsActive, variantSort,
			).Scan(&v.ID)
			if err != nil {
				return fmt.Errorf("upsert variant %s/%s: %w", p.Slug, v.SizeLabel, err)
			}
		}
		return nil
	})
}
