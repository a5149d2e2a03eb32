package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/timberline/api/internal/domain"
)

func newTestCatalogService(t *testing.T) CatalogService {
	t.Helper()
	service, err := NewCatalogService(CatalogServiceDeps{Pricer: NewPricingEngine()})
	if err != nil {
		t.Fatalf("unexpected error constructing catalog service: %v", err)
	}
	return service
}

func TestCatalogServiceCategories(t *testing.T) {
	service := newTestCatalogService(t)

	summaries, err := service.Categories(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != len(domain.Categories()) {
		t.Fatalf("expected %d categories, got %d", len(domain.Categories()), len(summaries))
	}
	for _, summary := range summaries {
		if summary.Name == "" {
			t.Fatalf("expected a display name for %s", summary.Category)
		}
		if summary.FromPrice <= 0 {
			t.Fatalf("expected a positive from price for %s, got %d", summary.Category, summary.FromPrice)
		}
	}
}

func TestCatalogServiceSchemaPricesDefaults(t *testing.T) {
	service := newTestCatalogService(t)

	schema, err := service.Schema(context.Background(), domain.CategoryGarage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.Category != domain.CategoryGarage {
		t.Fatalf("expected garage schema, got %s", schema.Category)
	}
	if len(schema.Options) == 0 {
		t.Fatalf("expected configurator options")
	}
	// One bay at the slider minimum on top of the base price.
	if schema.DefaultPrice != 950000 {
		t.Fatalf("expected default price 950000, got %d", schema.DefaultPrice)
	}
}

func TestCatalogServiceSchemaUnknownCategory(t *testing.T) {
	service := newTestCatalogService(t)

	_, err := service.Schema(context.Background(), domain.ProductCategory("treehouse"))
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}

func TestCatalogServiceQuoteValidConfiguration(t *testing.T) {
	service := newTestCatalogService(t)

	quote, err := service.Quote(context.Background(), QuoteCommand{
		Category: domain.CategoryGarage,
		Configuration: domain.Configuration{
			"bays":      int64(2),
			"beamSize":  "6x6",
			"trussType": "curved",
			"baySize":   "standard",
			"catSlide":  false,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.UnitPrice != 1100000 {
		t.Fatalf("expected 1100000 pence, got %d", quote.UnitPrice)
	}
	if len(quote.Breakdown) == 0 {
		t.Fatalf("expected a price breakdown")
	}
}

func TestCatalogServiceQuoteValidationErrorSurfaces(t *testing.T) {
	service := newTestCatalogService(t)

	_, err := service.Quote(context.Background(), QuoteCommand{
		Category:      domain.CategoryGarage,
		Configuration: domain.Configuration{"bays": int64(99)},
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestCatalogServiceQuoteEmptyConfiguration(t *testing.T) {
	service := newTestCatalogService(t)

	_, err := service.Quote(context.Background(), QuoteCommand{
		Category: domain.CategoryGarage,
	})
	if !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected ErrCatalogInvalidInput, got %v", err)
	}
}

func TestCatalogServiceQuoteUnknownCategory(t *testing.T) {
	service := newTestCatalogService(t)

	_, err := service.Quote(context.Background(), QuoteCommand{
		Category:      domain.ProductCategory("treehouse"),
		Configuration: domain.Configuration{"bays": int64(1)},
	})
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected ErrCatalogNotFound, got %v", err)
	}
}
