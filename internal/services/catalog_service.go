package services

import (
	"context"
	"errors"

	"github.com/timberline/api/internal/catalog"
	domain "github.com/timberline/api/internal/domain"
)

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrCatalogNotFound indicates the requested category does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogUnavailable indicates the catalogue cannot be served.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

var categoryNames = map[domain.ProductCategory]string{
	domain.CategoryGarage:   "Oak Framed Garages",
	domain.CategoryGazebo:   "Gazebos",
	domain.CategoryPorch:    "Porches",
	domain.CategoryBeams:    "Structural Beams",
	domain.CategoryFlooring: "Timber Flooring",
}

var categoryDescriptions = map[domain.ProductCategory]string{
	domain.CategoryGarage:   "Traditional oak framed garages, built to order.",
	domain.CategoryGazebo:   "Handcrafted garden gazebos in seasoned oak.",
	domain.CategoryPorch:    "Bespoke oak porches to suit any frontage.",
	domain.CategoryBeams:    "Air dried and fresh sawn structural oak beams.",
	domain.CategoryFlooring: "Solid timber flooring, milled to specification.",
}

// CatalogQuoter prices configurations for the catalogue surface.
type CatalogQuoter interface {
	Quote(ctx context.Context, category domain.ProductCategory, cfg domain.Configuration) (domain.Quote, error)
}

// CatalogServiceDeps wires the pricing dependency for catalogue operations.
type CatalogServiceDeps struct {
	Pricer CatalogQuoter
	Logger func(context.Context, string, map[string]any)
}

type catalogService struct {
	pricer CatalogQuoter
	logger func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Pricer == nil {
		return nil, errors.New("catalog service: pricer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{pricer: deps.Pricer, logger: logger}, nil
}

// Categories lists every product family with its configured-from price.
func (s *catalogService) Categories(ctx context.Context) ([]CategorySummary, error) {
	if s == nil || s.pricer == nil {
		return nil, ErrCatalogUnavailable
	}

	summaries := make([]CategorySummary, 0, len(domain.Categories()))
	for _, category := range domain.Categories() {
		defaults, err := catalog.DefaultConfiguration(category)
		if err != nil {
			return nil, ErrCatalogUnavailable
		}
		quote, err := s.pricer.Quote(ctx, category, defaults)
		if err != nil {
			return nil, ErrCatalogUnavailable
		}
		summaries = append(summaries, CategorySummary{
			Category:    category,
			Name:        categoryNames[category],
			Description: categoryDescriptions[category],
			FromPrice:   quote.UnitPrice,
		})
	}
	return summaries, nil
}

// Schema returns the configurator schema with defaults and their price.
func (s *catalogService) Schema(ctx context.Context, category domain.ProductCategory) (CategorySchema, error) {
	if s == nil || s.pricer == nil {
		return CategorySchema{}, ErrCatalogUnavailable
	}

	options, err := catalog.Schema(category)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownCategory) {
			return CategorySchema{}, ErrCatalogNotFound
		}
		return CategorySchema{}, ErrCatalogUnavailable
	}
	defaults, err := catalog.DefaultConfiguration(category)
	if err != nil {
		return CategorySchema{}, ErrCatalogUnavailable
	}
	quote, err := s.pricer.Quote(ctx, category, defaults)
	if err != nil {
		return CategorySchema{}, ErrCatalogUnavailable
	}

	return CategorySchema{
		Category:     category,
		Options:      options,
		Defaults:     defaults,
		DefaultPrice: quote.UnitPrice,
	}, nil
}

// Quote prices a configuration supplied by the storefront configurator.
func (s *catalogService) Quote(ctx context.Context, cmd QuoteCommand) (domain.Quote, error) {
	if s == nil || s.pricer == nil {
		return domain.Quote{}, ErrCatalogUnavailable
	}
	if !domain.ValidCategory(cmd.Category) {
		return domain.Quote{}, ErrCatalogNotFound
	}
	if len(cmd.Configuration) == 0 {
		return domain.Quote{}, ErrCatalogInvalidInput
	}

	quote, err := s.pricer.Quote(ctx, cmd.Category, cmd.Configuration)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return domain.Quote{}, validationErr
		}
		if errors.Is(err, ErrPricingUnknownCategory) {
			return domain.Quote{}, ErrCatalogNotFound
		}
		return domain.Quote{}, ErrCatalogUnavailable
	}
	return quote, nil
}
