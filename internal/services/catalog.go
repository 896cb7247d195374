package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"

	"github.com/gitshopapp/storefront/internal/catalog"
	"github.com/gitshopapp/storefront/internal/logging"
	"github.com/gitshopapp/storefront/internal/models"
	"github.com/gitshopapp/storefront/internal/observability"
)

var ErrInvalidProduct = errors.New("invalid product")

type productCatalog interface {
	List(ctx context.Context, kind models.ProductKind, activeOnly bool) ([]*models.Product, error)
	Upsert(ctx context.Context, product *models.Product) error
}

// CatalogService lists products for the storefront and lets admins edit them.
type CatalogService struct {
	products  productCatalog
	validator *catalog.Validator
	logger    *slog.Logger
}

func NewCatalogService(products productCatalog, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		products:  products,
		validator: catalog.NewValidator(),
		logger:    logger,
	}
}

func parseProductKind(value string) (models.ProductKind, error) {
	kind := models.ProductKind(strings.TrimSpace(value))
	switch kind {
	case "", models.ProductKindFrozenFood, models.ProductKindGoods:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidProduct, value)
	}
}

// ListActive returns sellable products, optionally of one kind.
func (s *CatalogService) ListActive(ctx context.Context, kind string) ([]*models.Product, error) {
	productKind, err := parseProductKind(kind)
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx, productKind, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListAll includes inactive products and variants.
func (s *CatalogService) ListAll(ctx context.Context, kind string) ([]*models.Product, error) {
	productKind, err := parseProductKind(kind)
	if err != nil {
		return nil, err
	}
	products, err := s.products.List(ctx, productKind, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// Upsert validates a catalog entry and stores it by slug.
func (s *CatalogService) Upsert(ctx context.Context, input catalog.ProductConfig) (*models.Product, error) {
	span := sentry.StartSpan(
		ctx,
		"service.catalog.upsert",
		sentry.WithOpName("service.catalog"),
		sentry.WithDescription("Upsert"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	input.Slug = strings.TrimSpace(input.Slug)
	if err := s.validator.ValidateProduct(&input); err != nil {
		observability.CountReason(meter, "catalog.upsert.failed", "invalid_product")
		return nil, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}

	product := input.Product(input.SortOrder)
	if err := s.products.Upsert(ctx, product); err != nil {
		observability.CountReason(meter, "catalog.upsert.failed", "store_failed")
		logging.FromContext(ctx, s.logger).Error("failed to upsert product", "error", err, "slug", product.Slug)
		return nil, fmt.Errorf("failed to upsert product: %w", err)
	}
	meter.Count("catalog.upsert.processed", 1)
	span.Status = sentry.SpanStatusOK
	return product, nil
}
