package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/services"
)

type stubCatalogService struct {
	categoriesFunc func(ctx context.Context) ([]services.CategorySummary, error)
	schemaFunc     func(ctx context.Context, category domain.ProductCategory) (services.CategorySchema, error)
	quoteFunc      func(ctx context.Context, cmd services.QuoteCommand) (domain.Quote, error)
}

func (s *stubCatalogService) Categories(ctx context.Context) ([]services.CategorySummary, error) {
	if s.categoriesFunc != nil {
		return s.categoriesFunc(ctx)
	}
	return nil, nil
}

func (s *stubCatalogService) Schema(ctx context.Context, category domain.ProductCategory) (services.CategorySchema, error) {
	if s.schemaFunc != nil {
		return s.schemaFunc(ctx, category)
	}
	return services.CategorySchema{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) Quote(ctx context.Context, cmd services.QuoteCommand) (domain.Quote, error) {
	if s.quoteFunc != nil {
		return s.quoteFunc(ctx, cmd)
	}
	return domain.Quote{}, services.ErrCatalogNotFound
}

func newCatalogRouter(service services.CatalogService) chi.Router {
	handler := NewCatalogHandlers(service)
	router := chi.NewRouter()
	router.Route("/", handler.Routes)
	return router
}

func TestCatalogListCategories(t *testing.T) {
	service := &stubCatalogService{
		categoriesFunc: func(ctx context.Context) ([]services.CategorySummary, error) {
			return []services.CategorySummary{
				{Category: domain.CategoryGarage, Name: "Oak framed garages", FromPrice: domain.Money(950000)},
				{Category: domain.CategoryGazebo, Name: "Gazebos", FromPrice: domain.Money(420000)},
			}, nil
		},
	}
	router := newCatalogRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/catalog", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body categoryListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(body.Categories))
	}
	first := body.Categories[0]
	if first.Category != string(domain.CategoryGarage) || first.FromPrice != 950000 {
		t.Fatalf("unexpected first category %+v", first)
	}
	if first.Display != "£9,500.00" {
		t.Fatalf("expected a formatted price, got %q", first.Display)
	}
}

func TestCatalogQuote(t *testing.T) {
	var got services.QuoteCommand
	service := &stubCatalogService{
		quoteFunc: func(ctx context.Context, cmd services.QuoteCommand) (domain.Quote, error) {
			got = cmd
			return domain.Quote{
				Category:    cmd.Category,
				UnitPrice:   domain.Money(1100000),
				Description: "Two bay oak framed garage",
				Breakdown: []domain.PriceLine{
					{Code: "base", Description: "Base price", Amount: domain.Money(800000)},
					{Code: "bays", Description: "Bays", Amount: domain.Money(300000)},
				},
			}, nil
		},
	}
	router := newCatalogRouter(service)

	payload := `{"configuration":{"bays":2,"beamSize":"6x6","trussType":"curved"}}`
	req := httptest.NewRequest(http.MethodPost, "/catalog/garage/quote", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Category != domain.CategoryGarage {
		t.Fatalf("expected the garage category, got %q", got.Category)
	}
	if got.Configuration["trussType"] != "curved" {
		t.Fatalf("expected the configuration forwarded, got %v", got.Configuration)
	}

	var body quotePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.UnitPrice != 1100000 || body.Display != "£11,000.00" {
		t.Fatalf("unexpected quote payload %+v", body)
	}
	if len(body.Breakdown) != 2 || body.Breakdown[1].Amount != 300000 {
		t.Fatalf("unexpected breakdown %+v", body.Breakdown)
	}
}

func TestCatalogQuoteValidationFailure(t *testing.T) {
	service := &stubCatalogService{
		quoteFunc: func(ctx context.Context, cmd services.QuoteCommand) (domain.Quote, error) {
			verr := &services.ValidationError{}
			verr.Add("configuration.bays", "bays must be between 1 and 5")
			return domain.Quote{}, verr
		},
	}
	router := newCatalogRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/catalog/garage/quote", strings.NewReader(`{"configuration":{"bays":9}}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Error  string `json:"error"`
		Fields []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != "invalid_request" {
		t.Fatalf("expected invalid_request, got %q", body.Error)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "configuration.bays" {
		t.Fatalf("unexpected field violations %+v", body.Fields)
	}
}

func TestCatalogUnknownCategory(t *testing.T) {
	router := newCatalogRouter(&stubCatalogService{})

	req := httptest.NewRequest(http.MethodGet, "/catalog/treehouse", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "category_not_found" {
		t.Fatalf("expected category_not_found, got %v", body["error"])
	}
}
