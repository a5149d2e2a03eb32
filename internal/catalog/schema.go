// Package catalog holds the static product catalogue: the configurator
// schema and the price table for each product category.
package catalog

import (
	"errors"
	"fmt"

	"github.com/timberline/api/internal/domain"
)

// ErrUnknownCategory is returned when a category has no schema or price table.
var ErrUnknownCategory = errors.New("catalog: unknown category")

// FieldError describes one invalid option value in a configuration.
type FieldError struct {
	Option  string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Option, e.Message)
}

var schemas = map[domain.ProductCategory][]domain.Option{
	domain.CategoryGarage: {
		{
			ID:       "bays",
			Label:    "Number of bays",
			Kind:     domain.OptionKindSlider,
			Required: true,
			Min:      1,
			Max:      5,
			Step:     1,
		},
		{
			ID:       "beamSize",
			Label:    "Beam size",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "6x6", Label: "6\" x 6\""},
				{ID: "7x7", Label: "7\" x 7\""},
				{ID: "8x8", Label: "8\" x 8\""},
			},
		},
		{
			ID:       "trussType",
			Label:    "Truss type",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "curved", Label: "Curved"},
				{ID: "straight", Label: "Straight"},
				{ID: "king_post", Label: "King post"},
			},
		},
		{
			ID:       "baySize",
			Label:    "Bay size",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "standard", Label: "Standard"},
				{ID: "large", Label: "Large"},
			},
		},
		{
			ID:    "catSlide",
			Label: "Cat slide roof",
			Kind:  domain.OptionKindCheckbox,
		},
	},
	domain.CategoryGazebo: {
		{
			ID:       "size",
			Label:    "Footprint",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "3x3", Label: "3m x 3m"},
				{ID: "4x4", Label: "4m x 4m"},
				{ID: "6x4", Label: "6m x 4m"},
			},
		},
		{
			ID:       "roof",
			Label:    "Roof covering",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "cedar_shingle", Label: "Cedar shingle"},
				{ID: "slate", Label: "Slate"},
				{ID: "felt", Label: "Felt"},
			},
		},
		{
			ID:    "balustrade",
			Label: "Add balustrade",
			Kind:  domain.OptionKindCheckbox,
		},
	},
	domain.CategoryPorch: {
		{
			ID:       "style",
			Label:    "Porch style",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "lean_to", Label: "Lean-to"},
				{ID: "gabled", Label: "Gabled"},
			},
		},
		{
			ID:       "dimensions",
			Label:    "Footprint",
			Kind:     domain.OptionKindDimensions,
			Required: true,
		},
		{
			ID:    "oak_posts",
			Label: "Oak posts on staddle stones",
			Kind:  domain.OptionKindCheckbox,
		},
	},
	domain.CategoryBeams: {
		{
			ID:       "finish",
			Label:    "Finish",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "fresh_sawn", Label: "Fresh sawn"},
				{ID: "air_dried", Label: "Air dried"},
				{ID: "planed", Label: "Planed all round"},
			},
		},
		{
			ID:       "length_m",
			Label:    "Length (metres)",
			Kind:     domain.OptionKindSlider,
			Required: true,
			Min:      1,
			Max:      12,
			Step:     1,
		},
		{
			ID:       "quantity",
			Label:    "Number of beams",
			Kind:     domain.OptionKindSlider,
			Required: true,
			Min:      1,
			Max:      100,
			Step:     1,
		},
	},
	domain.CategoryFlooring: {
		{
			ID:       "species",
			Label:    "Timber species",
			Kind:     domain.OptionKindSelect,
			Required: true,
			Choices: []domain.OptionChoice{
				{ID: "oak", Label: "Oak"},
				{ID: "elm", Label: "Elm"},
				{ID: "larch", Label: "Larch"},
			},
		},
		{
			ID:       "area_sqm",
			Label:    "Area (square metres)",
			Kind:     domain.OptionKindArea,
			Required: true,
			MinArea:  5,
			MaxArea:  500,
		},
		{
			ID:    "underfloor_heating",
			Label: "Suitable for underfloor heating",
			Kind:  domain.OptionKindCheckbox,
		},
	},
}

// Schema returns the option schema for a category.
func Schema(category domain.ProductCategory) ([]domain.Option, error) {
	options, ok := schemas[category]
	if !ok {
		return nil, ErrUnknownCategory
	}
	return options, nil
}

// DefaultConfiguration builds a configuration with every option set to its
// default value: the first choice for selects, the minimum for sliders,
// false for checkboxes, and minimal sizes for dimensions and area options.
func DefaultConfiguration(category domain.ProductCategory) (domain.Configuration, error) {
	options, err := Schema(category)
	if err != nil {
		return nil, err
	}
	cfg := make(domain.Configuration, len(options))
	for _, option := range options {
		switch option.Kind {
		case domain.OptionKindSelect:
			if len(option.Choices) > 0 {
				cfg[option.ID] = option.Choices[0].ID
			}
		case domain.OptionKindSlider:
			cfg[option.ID] = option.Min
		case domain.OptionKindCheckbox:
			cfg[option.ID] = false
		case domain.OptionKindDimensions:
			cfg[option.ID] = domain.Dimensions{LengthMM: 2000, WidthMM: 1500}
		case domain.OptionKindArea:
			cfg[option.ID] = option.MinArea
		}
	}
	return cfg, nil
}

// ValidateConfiguration checks every option value against the category
// schema and returns one FieldError per failing option, so clients can
// surface all problems at once.
func ValidateConfiguration(category domain.ProductCategory, cfg domain.Configuration) ([]FieldError, error) {
	options, err := Schema(category)
	if err != nil {
		return nil, err
	}

	known := make(map[string]domain.Option, len(options))
	for _, option := range options {
		known[option.ID] = option
	}

	var violations []FieldError
	for _, option := range options {
		if _, present := cfg[option.ID]; !present {
			if option.Required {
				violations = append(violations, FieldError{Option: option.ID, Message: "value is required"})
			}
			continue
		}
		if fieldErr := validateValue(option, cfg); fieldErr != nil {
			violations = append(violations, *fieldErr)
		}
	}
	for key := range cfg {
		if _, ok := known[key]; !ok {
			violations = append(violations, FieldError{Option: key, Message: "unknown option"})
		}
	}
	return violations, nil
}

func validateValue(option domain.Option, cfg domain.Configuration) *FieldError {
	switch option.Kind {
	case domain.OptionKindSelect:
		value, ok := cfg.StringValue(option.ID)
		if !ok {
			return &FieldError{Option: option.ID, Message: "expected a choice id"}
		}
		for _, choice := range option.Choices {
			if choice.ID == value {
				return nil
			}
		}
		return &FieldError{Option: option.ID, Message: fmt.Sprintf("%q is not a valid choice", value)}
	case domain.OptionKindSlider:
		value, ok := cfg.IntValue(option.ID)
		if !ok {
			return &FieldError{Option: option.ID, Message: "expected a whole number"}
		}
		if value < option.Min || value > option.Max {
			return &FieldError{Option: option.ID, Message: fmt.Sprintf("must be between %d and %d", option.Min, option.Max)}
		}
		if option.Step > 1 && (value-option.Min)%option.Step != 0 {
			return &FieldError{Option: option.ID, Message: fmt.Sprintf("must be a multiple of %d", option.Step)}
		}
		return nil
	case domain.OptionKindCheckbox:
		if _, ok := cfg.BoolValue(option.ID); !ok {
			return &FieldError{Option: option.ID, Message: "expected true or false"}
		}
		return nil
	case domain.OptionKindDimensions:
		dims, ok := dimensionsValue(cfg[option.ID])
		if !ok {
			return &FieldError{Option: option.ID, Message: "expected length and width in millimetres"}
		}
		if dims.LengthMM <= 0 || dims.WidthMM <= 0 {
			return &FieldError{Option: option.ID, Message: "dimensions must be positive"}
		}
		return nil
	case domain.OptionKindArea:
		value, ok := cfg.FloatValue(option.ID)
		if !ok {
			return &FieldError{Option: option.ID, Message: "expected an area in square metres"}
		}
		if value < option.MinArea || value > option.MaxArea {
			return &FieldError{Option: option.ID, Message: fmt.Sprintf("must be between %.0f and %.0f square metres", option.MinArea, option.MaxArea)}
		}
		return nil
	default:
		return nil
	}
}

func dimensionsValue(raw any) (domain.Dimensions, bool) {
	switch v := raw.(type) {
	case domain.Dimensions:
		return v, true
	case map[string]any:
		cfg := domain.Configuration(v)
		length, okLength := cfg.IntValue("lengthMm")
		width, okWidth := cfg.IntValue("widthMm")
		if !okLength || !okWidth {
			return domain.Dimensions{}, false
		}
		height, _ := cfg.IntValue("heightMm")
		return domain.Dimensions{LengthMM: length, WidthMM: width, HeightMM: height}, true
	default:
		return domain.Dimensions{}, false
	}
}
