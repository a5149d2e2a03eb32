package domain

import "fmt"

// PerUnitTerm adds Amount multiplied by the integer value of a quantity
// option, such as the number of bays on a garage.
type PerUnitTerm struct {
	OptionID    string
	Description string
	Amount      Money
}

// Surcharge adds a flat amount when a specific choice is selected, or when a
// checkbox option is ticked. When ScaleOptionID is set the amount is scaled
// by that option's integer value.
type Surcharge struct {
	OptionID      string
	ChoiceID      string
	Description   string
	Amount        Money
	ScaleOptionID string
}

// Multiplier applies a percentage adjustment in basis points when the named
// choice is selected. Multipliers run after every additive term.
type Multiplier struct {
	OptionID    string
	ChoiceID    string
	Description string
	Bps         int64
}

// AreaTerm adds AmountPerSqm multiplied by the value of an area option,
// rounded half up to the nearest penny.
type AreaTerm struct {
	OptionID     string
	Description  string
	AmountPerSqm Money
}

// CategoryPriceTable is the declarative rule table that prices one product
// category. Evaluation is Base plus per-unit and area terms plus surcharges,
// then multipliers, floored at zero.
type CategoryPriceTable struct {
	Category    ProductCategory
	Description string
	Base        Money
	PerUnit     []PerUnitTerm
	Area        []AreaTerm
	Surcharges  []Surcharge
	Multipliers []Multiplier
}

// Evaluate prices the configuration against the table and returns the unit
// price with a line-by-line breakdown.
func (t CategoryPriceTable) Evaluate(cfg Configuration) Quote {
	quote := Quote{
		Category:    t.Category,
		Description: t.Description,
	}

	total := t.Base
	if t.Base != 0 {
		quote.Breakdown = append(quote.Breakdown, PriceLine{
			Code:        "base",
			Description: "Base price",
			Amount:      t.Base,
		})
	}

	for _, term := range t.PerUnit {
		units, ok := cfg.IntValue(term.OptionID)
		if !ok || units <= 0 {
			continue
		}
		amount := term.Amount.MulInt(units)
		total += amount
		quote.Breakdown = append(quote.Breakdown, PriceLine{
			Code:        term.OptionID,
			Description: fmt.Sprintf("%s x %d", term.Description, units),
			Amount:      amount,
		})
	}

	for _, term := range t.Area {
		area, ok := cfg.FloatValue(term.OptionID)
		if !ok || area <= 0 {
			continue
		}
		amount := Money(int64(float64(term.AmountPerSqm)*area + 0.5))
		total += amount
		quote.Breakdown = append(quote.Breakdown, PriceLine{
			Code:        term.OptionID,
			Description: fmt.Sprintf("%s (%.1f sqm)", term.Description, area),
			Amount:      amount,
		})
	}

	for _, surcharge := range t.Surcharges {
		if !surcharge.applies(cfg) {
			continue
		}
		amount := surcharge.Amount
		if surcharge.ScaleOptionID != "" {
			units, ok := cfg.IntValue(surcharge.ScaleOptionID)
			if !ok || units <= 0 {
				continue
			}
			amount = amount.MulInt(units)
		}
		total += amount
		quote.Breakdown = append(quote.Breakdown, PriceLine{
			Code:        surcharge.OptionID,
			Description: surcharge.Description,
			Amount:      amount,
		})
	}

	for _, multiplier := range t.Multipliers {
		if !multiplier.applies(cfg) {
			continue
		}
		amount := total.ApplyBasisPoints(multiplier.Bps)
		total += amount
		quote.Breakdown = append(quote.Breakdown, PriceLine{
			Code:        multiplier.OptionID,
			Description: multiplier.Description,
			Amount:      amount,
		})
	}

	if total < 0 {
		total = 0
	}
	quote.UnitPrice = total
	return quote
}

func (s Surcharge) applies(cfg Configuration) bool {
	if s.ChoiceID != "" {
		choice, ok := cfg.StringValue(s.OptionID)
		return ok && choice == s.ChoiceID
	}
	checked, ok := cfg.BoolValue(s.OptionID)
	return ok && checked
}

func (m Multiplier) applies(cfg Configuration) bool {
	if m.ChoiceID != "" {
		choice, ok := cfg.StringValue(m.OptionID)
		return ok && choice == m.ChoiceID
	}
	checked, ok := cfg.BoolValue(m.OptionID)
	return ok && checked
}
