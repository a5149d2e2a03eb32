package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	domain "github.com/timberline/api/internal/domain"
)

func TestPricingEngineQuoteGarage(t *testing.T) {
	engine := NewPricingEngine()

	quote, err := engine.Quote(context.Background(), domain.CategoryGarage, domain.Configuration{
		"bays":      int64(2),
		"beamSize":  "6x6",
		"trussType": "curved",
		"baySize":   "standard",
		"catSlide":  false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if quote.UnitPrice != 1100000 {
		t.Fatalf("expected unit price 1100000, got %d", quote.UnitPrice)
	}
	if !strings.Contains(quote.Description, "curved") {
		t.Fatalf("expected the description to mention the truss choice, got %q", quote.Description)
	}
}

func TestPricingEngineQuoteUnknownCategory(t *testing.T) {
	engine := NewPricingEngine()

	_, err := engine.Quote(context.Background(), domain.ProductCategory("treehouse"), domain.Configuration{})
	if !errors.Is(err, ErrPricingUnknownCategory) {
		t.Fatalf("expected ErrPricingUnknownCategory, got %v", err)
	}
}

func TestPricingEngineQuoteReportsEveryViolation(t *testing.T) {
	engine := NewPricingEngine()

	_, err := engine.Quote(context.Background(), domain.CategoryGarage, domain.Configuration{
		"bays":      int64(9),
		"trussType": "thatch",
		"baySize":   "standard",
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if len(validationErr.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %v", validationErr.Violations)
	}
	fields := make(map[string]struct{}, len(validationErr.Violations))
	for _, violation := range validationErr.Violations {
		fields[violation.Field] = struct{}{}
	}
	for _, field := range []string{"configuration.bays", "configuration.beamSize", "configuration.trussType"} {
		if _, ok := fields[field]; !ok {
			t.Fatalf("expected a violation for %s, got %v", field, validationErr.Violations)
		}
	}
}

func TestPricingEngineTotals(t *testing.T) {
	engine := NewPricingEngine()
	settings := domain.DefaultDeliverySettings()

	items := []domain.BasketItem{
		{UnitPrice: 1100000, Quantity: 1},
	}

	totals := engine.Totals(items, settings)

	if totals.Subtotal != 1100000 {
		t.Fatalf("expected subtotal 1100000, got %d", totals.Subtotal)
	}
	if totals.VAT != 220000 {
		t.Fatalf("expected VAT 220000, got %d", totals.VAT)
	}
	if totals.Shipping != 0 {
		t.Fatalf("expected free shipping above the top tier, got %d", totals.Shipping)
	}
	if totals.Total != 1320000 {
		t.Fatalf("expected total 1320000, got %d", totals.Total)
	}
}

func TestPricingEngineTotalsShippingTierBoundaries(t *testing.T) {
	engine := NewPricingEngine()
	settings := domain.DefaultDeliverySettings()

	cases := []struct {
		subtotal domain.Money
		shipping domain.Money
	}{
		{49999, 5000},
		{50000, 2500},
		{99999, 2500},
		{100000, 0},
	}

	for _, tc := range cases {
		totals := engine.Totals([]domain.BasketItem{{UnitPrice: tc.subtotal, Quantity: 1}}, settings)
		if totals.Shipping != tc.shipping {
			t.Fatalf("expected shipping %d for subtotal %d, got %d", tc.shipping, tc.subtotal, totals.Shipping)
		}
	}
}

func TestPricingEngineTotalsEmptyBasket(t *testing.T) {
	engine := NewPricingEngine()

	totals := engine.Totals(nil, domain.DefaultDeliverySettings())

	if totals.Subtotal != 0 || totals.VAT != 0 || totals.Shipping != 0 || totals.Total != 0 {
		t.Fatalf("expected all-zero totals for an empty basket, got %+v", totals)
	}
}
