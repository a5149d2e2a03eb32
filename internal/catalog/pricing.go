package catalog

import "github.com/timberline/api/internal/domain"

var priceTables = map[domain.ProductCategory]domain.CategoryPriceTable{
	domain.CategoryGarage: {
		Category:    domain.CategoryGarage,
		Description: "Oak framed garage",
		Base:        800000,
		PerUnit: []domain.PerUnitTerm{
			{OptionID: "bays", Description: "Bay", Amount: 150000},
		},
		Surcharges: []domain.Surcharge{
			{OptionID: "beamSize", ChoiceID: "7x7", Description: "7\" x 7\" beam upgrade", Amount: 45000, ScaleOptionID: "bays"},
			{OptionID: "beamSize", ChoiceID: "8x8", Description: "8\" x 8\" beam upgrade", Amount: 90000, ScaleOptionID: "bays"},
			{OptionID: "trussType", ChoiceID: "king_post", Description: "King post trusses", Amount: 65000},
			{OptionID: "catSlide", Description: "Cat slide roof", Amount: 60000, ScaleOptionID: "bays"},
		},
		Multipliers: []domain.Multiplier{
			{OptionID: "baySize", ChoiceID: "large", Description: "Large bays", Bps: 1500},
		},
	},
	domain.CategoryGazebo: {
		Category:    domain.CategoryGazebo,
		Description: "Oak framed gazebo",
		Base:        450000,
		Surcharges: []domain.Surcharge{
			{OptionID: "size", ChoiceID: "4x4", Description: "4m x 4m footprint", Amount: 150000},
			{OptionID: "size", ChoiceID: "6x4", Description: "6m x 4m footprint", Amount: 320000},
			{OptionID: "roof", ChoiceID: "cedar_shingle", Description: "Cedar shingle roof", Amount: 85000},
			{OptionID: "roof", ChoiceID: "slate", Description: "Slate roof", Amount: 110000},
			{OptionID: "balustrade", Description: "Balustrade", Amount: 60000},
		},
	},
	domain.CategoryPorch: {
		Category:    domain.CategoryPorch,
		Description: "Oak framed porch",
		Base:        180000,
		Surcharges: []domain.Surcharge{
			{OptionID: "style", ChoiceID: "gabled", Description: "Gabled style", Amount: 55000},
			{OptionID: "oak_posts", Description: "Oak posts on staddle stones", Amount: 40000},
		},
	},
	domain.CategoryBeams: {
		Category:    domain.CategoryBeams,
		Description: "Structural oak beams",
		PerUnit: []domain.PerUnitTerm{
			{OptionID: "length_m", Description: "Metre", Amount: 9500},
		},
		Surcharges: []domain.Surcharge{
			{OptionID: "finish", ChoiceID: "air_dried", Description: "Air dried finish", Amount: 4500, ScaleOptionID: "length_m"},
			{OptionID: "finish", ChoiceID: "planed", Description: "Planed all round", Amount: 2500, ScaleOptionID: "length_m"},
		},
	},
	domain.CategoryFlooring: {
		Category:    domain.CategoryFlooring,
		Description: "Solid timber flooring",
		Area: []domain.AreaTerm{
			{OptionID: "area_sqm", Description: "Flooring", AmountPerSqm: 8500},
		},
		Surcharges: []domain.Surcharge{
			{OptionID: "species", ChoiceID: "elm", Description: "Elm upgrade", Amount: 35000},
			{OptionID: "underfloor_heating", Description: "Underfloor heating preparation", Amount: 25000},
		},
		Multipliers: []domain.Multiplier{
			{OptionID: "species", ChoiceID: "oak", Description: "Oak premium", Bps: 1500},
		},
	},
}

// PriceTable returns the pricing rule table for a category.
func PriceTable(category domain.ProductCategory) (domain.CategoryPriceTable, error) {
	table, ok := priceTables[category]
	if !ok {
		return domain.CategoryPriceTable{}, ErrUnknownCategory
	}
	return table, nil
}
