package domain

import "testing"

func TestCategoryPriceTableEvaluatePerUnit(t *testing.T) {
	table := CategoryPriceTable{
		Category:    CategoryGarage,
		Description: "Oak framed garage",
		Base:        800000,
		PerUnit: []PerUnitTerm{
			{OptionID: "bays", Description: "Bay", Amount: 150000},
		},
	}

	quote := table.Evaluate(Configuration{"bays": int64(2)})

	if quote.UnitPrice != 1100000 {
		t.Fatalf("expected unit price 1100000, got %d", quote.UnitPrice)
	}
	if len(quote.Breakdown) != 2 {
		t.Fatalf("expected 2 breakdown lines, got %d", len(quote.Breakdown))
	}
	if quote.Breakdown[0].Code != "base" || quote.Breakdown[0].Amount != 800000 {
		t.Fatalf("unexpected base line %+v", quote.Breakdown[0])
	}
	if quote.Breakdown[1].Code != "bays" || quote.Breakdown[1].Amount != 300000 {
		t.Fatalf("unexpected per-unit line %+v", quote.Breakdown[1])
	}
}

func TestCategoryPriceTableEvaluateAreaRoundsHalfUp(t *testing.T) {
	table := CategoryPriceTable{
		Category: CategoryFlooring,
		Area: []AreaTerm{
			{OptionID: "area_sqm", Description: "Flooring", AmountPerSqm: 8500},
		},
	}

	quote := table.Evaluate(Configuration{"area_sqm": 10.5})

	if quote.UnitPrice != 89250 {
		t.Fatalf("expected unit price 89250, got %d", quote.UnitPrice)
	}
	if len(quote.Breakdown) != 1 {
		t.Fatalf("expected a single area line, got %d", len(quote.Breakdown))
	}
}

func TestCategoryPriceTableEvaluateScaledSurcharge(t *testing.T) {
	table := CategoryPriceTable{
		Category: CategoryBeams,
		PerUnit: []PerUnitTerm{
			{OptionID: "length_m", Description: "Metre", Amount: 9500},
		},
		Surcharges: []Surcharge{
			{OptionID: "finish", ChoiceID: "air_dried", Description: "Air dried finish", Amount: 4500, ScaleOptionID: "length_m"},
		},
	}

	quote := table.Evaluate(Configuration{"finish": "air_dried", "length_m": int64(6)})

	// 6m at 9500/m plus the air dried surcharge scaled over the length.
	if quote.UnitPrice != 84000 {
		t.Fatalf("expected unit price 84000, got %d", quote.UnitPrice)
	}
	if len(quote.Breakdown) != 2 {
		t.Fatalf("expected 2 breakdown lines, got %d", len(quote.Breakdown))
	}
	if quote.Breakdown[1].Amount != 27000 {
		t.Fatalf("expected scaled surcharge 27000, got %d", quote.Breakdown[1].Amount)
	}
}

func TestCategoryPriceTableEvaluateMultiplierRunsAfterAdditiveTerms(t *testing.T) {
	table := CategoryPriceTable{
		Category: CategoryGarage,
		Base:     800000,
		PerUnit: []PerUnitTerm{
			{OptionID: "bays", Description: "Bay", Amount: 150000},
		},
		Multipliers: []Multiplier{
			{OptionID: "catSlide", Description: "Cat slide roof", Bps: 3500},
		},
	}

	quote := table.Evaluate(Configuration{"bays": int64(2), "catSlide": true})

	if quote.UnitPrice != 1485000 {
		t.Fatalf("expected unit price 1485000, got %d", quote.UnitPrice)
	}
	last := quote.Breakdown[len(quote.Breakdown)-1]
	if last.Code != "catSlide" || last.Amount != 385000 {
		t.Fatalf("unexpected multiplier line %+v", last)
	}
}

func TestCategoryPriceTableEvaluateUntickedCheckboxSkipsSurcharge(t *testing.T) {
	table := CategoryPriceTable{
		Category: CategoryGazebo,
		Base:     450000,
		Surcharges: []Surcharge{
			{OptionID: "balustrade", Description: "Balustrade", Amount: 60000},
		},
	}

	quote := table.Evaluate(Configuration{"balustrade": false})

	if quote.UnitPrice != 450000 {
		t.Fatalf("expected unit price 450000, got %d", quote.UnitPrice)
	}
}

func TestCategoryPriceTableEvaluateFloorsAtZero(t *testing.T) {
	table := CategoryPriceTable{
		Category: CategoryPorch,
		Base:     -5000,
	}

	quote := table.Evaluate(Configuration{})

	if quote.UnitPrice != 0 {
		t.Fatalf("expected floored unit price 0, got %d", quote.UnitPrice)
	}
}
