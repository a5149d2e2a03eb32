package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/services"
)

type stubSettingsService struct {
	getFunc    func(ctx context.Context) (domain.DeliverySettings, error)
	updateFunc func(ctx context.Context, cmd services.UpdateDeliverySettingsCommand) (domain.DeliverySettings, error)
}

func (s *stubSettingsService) GetDeliverySettings(ctx context.Context) (domain.DeliverySettings, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx)
	}
	return domain.DefaultDeliverySettings(), nil
}

func (s *stubSettingsService) UpdateDeliverySettings(ctx context.Context, cmd services.UpdateDeliverySettingsCommand) (domain.DeliverySettings, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return domain.DeliverySettings{}, nil
}

func newDeliveryRouter(service services.SettingsService) chi.Router {
	handler := NewDeliveryHandlers(service)
	router := chi.NewRouter()
	router.Route("/", handler.Routes)
	return router
}

func TestDeliveryOptionsReturnsTiers(t *testing.T) {
	service := &stubSettingsService{
		getFunc: func(ctx context.Context) (domain.DeliverySettings, error) {
			return domain.DeliverySettings{
				VATRateBps: 2000,
				ShippingTiers: []domain.ShippingTier{
					{Threshold: domain.Money(0), Cost: domain.Money(5000)},
					{Threshold: domain.Money(50000), Cost: domain.Money(2500)},
					{Threshold: domain.Money(100000), Cost: domain.Money(0)},
				},
			}, nil
		},
	}
	router := newDeliveryRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/delivery-options", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body deliveryOptionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.VATRateBps != 2000 {
		t.Fatalf("unexpected vat rate %d", body.VATRateBps)
	}
	if len(body.Options) != 3 {
		t.Fatalf("expected 3 options, got %d", len(body.Options))
	}
	if body.Options[1].Threshold != 50000 || body.Options[1].CostDisplay != "£25.00" {
		t.Fatalf("unexpected tier payload %+v", body.Options[1])
	}
	if body.Options[2].Cost != 0 || body.Options[2].CostDisplay != "£0.00" {
		t.Fatalf("unexpected free tier payload %+v", body.Options[2])
	}
}

func TestDeliveryOptionsServiceUnavailable(t *testing.T) {
	service := &stubSettingsService{
		getFunc: func(ctx context.Context) (domain.DeliverySettings, error) {
			return domain.DeliverySettings{}, services.ErrSettingsUnavailable
		},
	}
	router := newDeliveryRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/delivery-options", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
