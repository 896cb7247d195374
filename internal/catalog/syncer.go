package catalog

import (
	"context"
	"fmt"

	"github.com/gitshopapp/storefront/internal/models"
)

// ProductSink is where a synced catalog is written.
type ProductSink interface {
	List(ctx context.Context, kind models.ProductKind, activeOnly bool) ([]*models.Product, error)
	Upsert(ctx context.Context, product *models.Product) error
}

type SyncOptions struct {
	// Prune deactivates stored products whose slug is missing from the file.
	Prune bool
	// DryRun validates the file and reports changes without writing.
	DryRun bool
}

type SyncResult struct {
	Upserted    []string
	Deactivated []string
}

// Syncer loads a catalog file into the product store.
type Syncer struct {
	parser    *Parser
	validator *Validator
	sink      ProductSink
}

func NewSyncer(sink ProductSink) *Syncer {
	return &Syncer{
		parser:    NewParser(),
		validator: NewValidator(),
		sink:      sink,
	}
}

func (s *Syncer) Sync(ctx context.Context, content []byte, opts SyncOptions) (*SyncResult, error) {
	file, err := s.parser.Parse(content)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(file); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	result := &SyncResult{}
	inFile := make(map[string]bool, len(file.Products))
	for _, product := range file.ToProducts() {
		inFile[product.Slug] = true
		if !opts.DryRun {
			if err := s.sink.Upsert(ctx, product); err != nil {
				return result, fmt.Errorf("failed to upsert %s: %w", product.Slug, err)
			}
		}
		result.Upserted = append(result.Upserted, product.Slug)
	}

	if !opts.Prune {
		return result, nil
	}

	stored, err := s.sink.List(ctx, "", true)
	if err != nil {
		return result, fmt.Errorf("failed to list stored products: %w", err)
	}
	for _, product := range stored {
		if inFile[product.Slug] {
			continue
		}
		product.IsActive = false
		if !opts.DryRun {
			if err := s.sink.Upsert(ctx, product); err != nil {
				return result, fmt.Errorf("failed to deactivate %s: %w", product.Slug, err)
			}
		}
		result.Deactivated = append(result.Deactivated, product.Slug)
	}
	return result, nil
}
