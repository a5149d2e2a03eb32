package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/timberline/api/internal/catalog"
	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

// ErrPricingInvalidInput indicates the configuration failed validation.
var ErrPricingInvalidInput = errors.New("pricing: invalid input")

// ErrPricingUnknownCategory indicates no schema or price table exists for the category.
var ErrPricingUnknownCategory = errors.New("pricing: unknown category")

// PricingEngine validates configurations against the catalogue schema and
// prices them with the category rule tables.
type PricingEngine struct{}

// NewPricingEngine constructs the rule-table pricer.
func NewPricingEngine() *PricingEngine {
	return &PricingEngine{}
}

// Quote validates the configuration and returns the unit price with a
// breakdown. Every failing option is reported, not just the first.
func (p *PricingEngine) Quote(ctx context.Context, category domain.ProductCategory, cfg domain.Configuration) (domain.Quote, error) {
	violations, err := catalog.ValidateConfiguration(category, cfg)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownCategory) {
			return domain.Quote{}, ErrPricingUnknownCategory
		}
		return domain.Quote{}, err
	}
	if len(violations) > 0 {
		validationErr := &ValidationError{}
		for _, violation := range violations {
			validationErr.Add("configuration."+violation.Option, violation.Message)
		}
		return domain.Quote{}, validationErr
	}

	table, err := catalog.PriceTable(category)
	if err != nil {
		return domain.Quote{}, ErrPricingUnknownCategory
	}

	quote := table.Evaluate(cfg)
	quote.Description = describeConfiguration(category, cfg, table.Description)
	return quote, nil
}

// Totals computes the basket summary from the frozen line prices and the
// current delivery settings.
func (p *PricingEngine) Totals(items []domain.BasketItem, settings domain.DeliverySettings) domain.BasketTotals {
	var subtotal domain.Money
	for _, item := range items {
		subtotal += item.LineTotal()
	}

	vat := subtotal.ApplyBasisPoints(settings.VATRateBps)
	shipping := shippingFor(subtotal, settings.ShippingTiers)
	if len(items) == 0 {
		shipping = 0
	}

	return domain.BasketTotals{
		Subtotal: subtotal,
		VAT:      vat,
		Shipping: shipping,
		Total:    subtotal + vat + shipping,
	}
}

// shippingFor picks the charge of the highest tier the subtotal qualifies for.
func shippingFor(subtotal domain.Money, tiers []domain.ShippingTier) domain.Money {
	if len(tiers) == 0 {
		return 0
	}
	sorted := make([]domain.ShippingTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Threshold > sorted[j].Threshold
	})
	for _, tier := range sorted {
		if subtotal >= tier.Threshold {
			return tier.Cost
		}
	}
	return sorted[len(sorted)-1].Cost
}

// describeConfiguration renders a short human-readable summary of the chosen
// options, used as the basket line description.
func describeConfiguration(category domain.ProductCategory, cfg domain.Configuration, base string) string {
	options, err := catalog.Schema(category)
	if err != nil {
		return base
	}

	parts := []string{base}
	for _, option := range options {
		switch option.Kind {
		case domain.OptionKindSelect:
			value, ok := cfg.StringValue(option.ID)
			if !ok {
				continue
			}
			for _, choice := range option.Choices {
				if choice.ID == value {
					parts = append(parts, strings.ToLower(choice.Label)+" "+strings.ToLower(option.Label))
					break
				}
			}
		case domain.OptionKindSlider:
			if value, ok := cfg.IntValue(option.ID); ok {
				parts = append(parts, fmt.Sprintf("%s %d", strings.ToLower(option.Label), value))
			}
		case domain.OptionKindCheckbox:
			if checked, ok := cfg.BoolValue(option.ID); ok && checked {
				parts = append(parts, strings.ToLower(option.Label))
			}
		case domain.OptionKindArea:
			if value, ok := cfg.FloatValue(option.ID); ok {
				parts = append(parts, fmt.Sprintf("%.1f sqm", value))
			}
		}
	}
	return strings.Join(parts, ", ")
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
