package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

// CatalogHandlers exposes the public product configurator endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

const maxQuoteBodySize = 16 * 1024

// NewCatalogHandlers constructs handlers for the public catalogue surface.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the catalogue endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/catalog", h.listCategories)
	r.Get("/catalog/{category}", h.getSchema)
	r.Post("/catalog/{category}/quote", h.quote)
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	items := make([]categorySummaryPayload, 0, len(categories))
	for _, summary := range categories {
		items = append(items, buildCategorySummaryPayload(summary))
	}
	writeJSONResponse(w, http.StatusOK, categoryListResponse{Categories: items})
}

func (h *CatalogHandlers) getSchema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	category := domain.ProductCategory(strings.TrimSpace(chi.URLParam(r, "category")))
	schema, err := h.catalog.Schema(ctx, category)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCategorySchemaPayload(schema))
}

func (h *CatalogHandlers) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxQuoteBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req quoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.QuoteCommand{
		Category:      domain.ProductCategory(strings.TrimSpace(chi.URLParam(r, "category"))),
		Configuration: domain.Configuration(req.Configuration),
	}

	quote, err := h.catalog.Quote(ctx, cmd)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildQuotePayload(quote))
}

func (h *CatalogHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "unknown product category", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to serve catalogue request", http.StatusInternalServerError))
	}
}

type quoteRequest struct {
	Configuration map[string]any `json:"configuration"`
}

type categoryListResponse struct {
	Categories []categorySummaryPayload `json:"categories"`
}

type categorySummaryPayload struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Description string `json:"description"`
	FromPrice   int64  `json:"fromPrice"`
	Display     string `json:"fromPriceDisplay"`
}

type categorySchemaPayload struct {
	Category     string          `json:"category"`
	Options      []optionPayload `json:"options"`
	Defaults     map[string]any  `json:"defaults"`
	DefaultPrice int64           `json:"defaultPrice"`
	Display      string          `json:"defaultPriceDisplay"`
}

type optionPayload struct {
	ID       string                `json:"id"`
	Label    string                `json:"label"`
	Kind     string                `json:"kind"`
	Required bool                  `json:"required"`
	Choices  []optionChoicePayload `json:"choices,omitempty"`
	Min      *int64                `json:"min,omitempty"`
	Max      *int64                `json:"max,omitempty"`
	Step     *int64                `json:"step,omitempty"`
	MinArea  *float64              `json:"minArea,omitempty"`
	MaxArea  *float64              `json:"maxArea,omitempty"`
}

type optionChoicePayload struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type quotePayload struct {
	Category    string             `json:"category"`
	UnitPrice   int64              `json:"unitPrice"`
	Display     string             `json:"unitPriceDisplay"`
	Description string             `json:"description"`
	Breakdown   []priceLinePayload `json:"breakdown"`
}

type priceLinePayload struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
}

func buildCategorySummaryPayload(summary services.CategorySummary) categorySummaryPayload {
	return categorySummaryPayload{
		Category:    string(summary.Category),
		Name:        summary.Name,
		Description: summary.Description,
		FromPrice:   summary.FromPrice.Pence(),
		Display:     summary.FromPrice.String(),
	}
}

func buildCategorySchemaPayload(schema services.CategorySchema) categorySchemaPayload {
	options := make([]optionPayload, 0, len(schema.Options))
	for _, opt := range schema.Options {
		options = append(options, buildOptionPayload(opt))
	}
	return categorySchemaPayload{
		Category:     string(schema.Category),
		Options:      options,
		Defaults:     map[string]any(schema.Defaults),
		DefaultPrice: schema.DefaultPrice.Pence(),
		Display:      schema.DefaultPrice.String(),
	}
}

func buildOptionPayload(opt domain.Option) optionPayload {
	payload := optionPayload{
		ID:       opt.ID,
		Label:    opt.Label,
		Kind:     string(opt.Kind),
		Required: opt.Required,
	}
	for _, choice := range opt.Choices {
		payload.Choices = append(payload.Choices, optionChoicePayload(choice))
	}
	switch opt.Kind {
	case domain.OptionKindSlider:
		minValue, maxValue, step := opt.Min, opt.Max, opt.Step
		payload.Min = &minValue
		payload.Max = &maxValue
		payload.Step = &step
	case domain.OptionKindArea:
		minArea, maxArea := opt.MinArea, opt.MaxArea
		payload.MinArea = &minArea
		payload.MaxArea = &maxArea
	}
	return payload
}

func buildQuotePayload(quote domain.Quote) quotePayload {
	breakdown := make([]priceLinePayload, 0, len(quote.Breakdown))
	for _, line := range quote.Breakdown {
		breakdown = append(breakdown, priceLinePayload{
			Code:        line.Code,
			Description: line.Description,
			Amount:      line.Amount.Pence(),
		})
	}
	return quotePayload{
		Category:    string(quote.Category),
		UnitPrice:   quote.UnitPrice.Pence(),
		Display:     quote.UnitPrice.String(),
		Description: quote.Description,
		Breakdown:   breakdown,
	}
}
