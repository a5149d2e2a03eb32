package catalog

import (
	"errors"
	"testing"

	"github.com/timberline/api/internal/domain"
)

func TestSchemaUnknownCategory(t *testing.T) {
	if _, err := Schema(domain.ProductCategory("treehouse")); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestDefaultConfigurationValidatesCleanly(t *testing.T) {
	for _, category := range domain.Categories() {
		cfg, err := DefaultConfiguration(category)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", category, err)
		}
		violations, err := ValidateConfiguration(category, cfg)
		if err != nil {
			t.Fatalf("unexpected error validating %s defaults: %v", category, err)
		}
		if len(violations) != 0 {
			t.Fatalf("expected %s defaults to validate, got %v", category, violations)
		}
	}
}

func TestValidateConfigurationReportsEveryFailingOption(t *testing.T) {
	cfg := domain.Configuration{
		"bays":      int64(9),
		"trussType": "thatch",
		"baySize":   "standard",
		"paint":     "blue",
	}

	violations, err := ValidateConfiguration(domain.CategoryGarage, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byOption := make(map[string]string, len(violations))
	for _, violation := range violations {
		byOption[violation.Option] = violation.Message
	}

	if _, ok := byOption["bays"]; !ok {
		t.Fatalf("expected a violation for bays, got %v", violations)
	}
	if _, ok := byOption["beamSize"]; !ok {
		t.Fatalf("expected a violation for the missing required beamSize option, got %v", violations)
	}
	if _, ok := byOption["trussType"]; !ok {
		t.Fatalf("expected a violation for the invalid trussType choice, got %v", violations)
	}
	if msg, ok := byOption["paint"]; !ok || msg != "unknown option" {
		t.Fatalf("expected an unknown option violation for paint, got %v", violations)
	}
}

func TestValidateConfigurationOptionalCheckboxMayBeOmitted(t *testing.T) {
	cfg := domain.Configuration{
		"bays":      int64(2),
		"beamSize":  "6x6",
		"trussType": "curved",
		"baySize":   "standard",
	}

	violations, err := ValidateConfiguration(domain.CategoryGarage, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func TestValidateConfigurationDimensionsFromDecodedJSON(t *testing.T) {
	cfg := domain.Configuration{
		"style": "lean_to",
		"dimensions": map[string]any{
			"lengthMm": float64(2400),
			"widthMm":  float64(1600),
		},
	}

	violations, err := ValidateConfiguration(domain.CategoryPorch, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func TestValidateConfigurationRejectsNonPositiveDimensions(t *testing.T) {
	cfg := domain.Configuration{
		"style":      "gabled",
		"dimensions": domain.Dimensions{LengthMM: 0, WidthMM: 1500},
	}

	violations, err := ValidateConfiguration(domain.CategoryPorch, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 || violations[0].Option != "dimensions" {
		t.Fatalf("expected a dimensions violation, got %v", violations)
	}
}

func TestValidateConfigurationAreaBounds(t *testing.T) {
	cfg := domain.Configuration{
		"species":  "oak",
		"area_sqm": 2.0,
	}

	violations, err := ValidateConfiguration(domain.CategoryFlooring, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 || violations[0].Option != "area_sqm" {
		t.Fatalf("expected an area violation, got %v", violations)
	}
}
