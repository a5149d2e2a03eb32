package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/auth"
	"github.com/timberline/api/internal/services"
)

type stubBasketService struct {
	getFunc    func(ctx context.Context, userID string) (services.BasketView, error)
	addFunc    func(ctx context.Context, cmd services.AddBasketItemCommand) (services.BasketView, error)
	updateFunc func(ctx context.Context, cmd services.UpdateBasketItemCommand) (services.BasketView, error)
	removeFunc func(ctx context.Context, userID string, itemID string) (services.BasketView, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubBasketService) GetBasket(ctx context.Context, userID string) (services.BasketView, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.BasketView{}, nil
}

func (s *stubBasketService) AddItem(ctx context.Context, cmd services.AddBasketItemCommand) (services.BasketView, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return services.BasketView{}, nil
}

func (s *stubBasketService) UpdateItemQuantity(ctx context.Context, cmd services.UpdateBasketItemCommand) (services.BasketView, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.BasketView{}, nil
}

func (s *stubBasketService) RemoveItem(ctx context.Context, userID string, itemID string) (services.BasketView, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, itemID)
	}
	return services.BasketView{}, nil
}

func (s *stubBasketService) ClearBasket(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return nil
}

func newBasketRouter(service services.BasketService) chi.Router {
	handler := NewBasketHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/basket", handler.Routes)
	return router
}

func withIdentity(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
}

func TestBasketRequiresIdentity(t *testing.T) {
	router := newBasketRouter(&stubBasketService{})

	req := httptest.NewRequest(http.MethodGet, "/basket/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "unauthenticated" {
		t.Fatalf("expected unauthenticated, got %v", body["error"])
	}
}

func TestBasketAddItem(t *testing.T) {
	added := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	var got services.AddBasketItemCommand

	service := &stubBasketService{
		addFunc: func(ctx context.Context, cmd services.AddBasketItemCommand) (services.BasketView, error) {
			got = cmd
			item := domain.BasketItem{
				ID:          "item-1",
				Category:    cmd.Category,
				Description: "Two bay oak framed garage",
				UnitPrice:   domain.Money(1100000),
				Quantity:    1,
				AddedAt:     added,
			}
			return services.BasketView{
				Basket: domain.Basket{OwnerID: cmd.UserID, Items: []domain.BasketItem{item}, UpdatedAt: added},
				Totals: domain.BasketTotals{
					Subtotal: domain.Money(1100000),
					VAT:      domain.Money(220000),
					Total:    domain.Money(1320000),
				},
			}, nil
		},
	}
	router := newBasketRouter(service)

	payload := `{"category":"garage","configuration":{"bays":2},"quantity":1}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/basket/items", strings.NewReader(payload)), "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.UserID != "user-7" || got.Category != domain.CategoryGarage {
		t.Fatalf("unexpected command %+v", got)
	}

	var body basketPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0].LineTotal != 1100000 {
		t.Fatalf("unexpected items %+v", body.Items)
	}
	if body.Totals.Total != 1320000 || body.Totals.Display != "£13,200.00" {
		t.Fatalf("unexpected totals %+v", body.Totals)
	}
}

func TestBasketUpdateItemNotFound(t *testing.T) {
	service := &stubBasketService{
		updateFunc: func(ctx context.Context, cmd services.UpdateBasketItemCommand) (services.BasketView, error) {
			return services.BasketView{}, services.ErrBasketNotFound
		},
	}
	router := newBasketRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodPatch, "/basket/items/item-9", strings.NewReader(`{"quantity":2}`)), "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "basket_item_not_found" {
		t.Fatalf("expected basket_item_not_found, got %v", body["error"])
	}
}

func TestBasketClear(t *testing.T) {
	cleared := ""
	service := &stubBasketService{
		clearFunc: func(ctx context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}
	router := newBasketRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/basket/", nil), "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if cleared != "user-7" {
		t.Fatalf("expected the caller's basket cleared, got %q", cleared)
	}
}
