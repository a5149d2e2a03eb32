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
	"github.com/timberline/api/internal/repositories"
	"github.com/timberline/api/internal/services"
)

type stubLeadService struct {
	captureFunc func(ctx context.Context, cmd services.CaptureLeadCommand) (domain.Lead, error)
	getFunc     func(ctx context.Context, leadID string) (domain.Lead, error)
	listFunc    func(ctx context.Context, filter repositories.LeadListFilter) (domain.CursorPage[domain.Lead], error)
	updateFunc  func(ctx context.Context, cmd services.UpdateLeadCommand) (domain.Lead, error)
}

func (s *stubLeadService) CaptureLead(ctx context.Context, cmd services.CaptureLeadCommand) (domain.Lead, error) {
	if s.captureFunc != nil {
		return s.captureFunc(ctx, cmd)
	}
	return domain.Lead{}, nil
}

func (s *stubLeadService) GetLead(ctx context.Context, leadID string) (domain.Lead, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, leadID)
	}
	return domain.Lead{}, services.ErrLeadNotFound
}

func (s *stubLeadService) ListLeads(ctx context.Context, filter repositories.LeadListFilter) (domain.CursorPage[domain.Lead], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Lead]{}, nil
}

func (s *stubLeadService) UpdateLead(ctx context.Context, cmd services.UpdateLeadCommand) (domain.Lead, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return domain.Lead{}, nil
}

func newContactRouter(service services.LeadService, enabled bool) chi.Router {
	handler := NewContactHandlers(service, enabled)
	router := chi.NewRouter()
	router.Route("/", handler.Routes)
	return router
}

func TestContactCapturesLead(t *testing.T) {
	created := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	var got services.CaptureLeadCommand

	service := &stubLeadService{
		captureFunc: func(ctx context.Context, cmd services.CaptureLeadCommand) (domain.Lead, error) {
			got = cmd
			return domain.Lead{ID: "lead-1", Status: domain.LeadStatusNew, CreatedAt: created}, nil
		},
	}
	router := newContactRouter(service, true)

	payload := `{"name":"Jo Bloggs","email":"jo@example.co.uk","message":"Interested in a garage.","category":"garage","source":"storefront"}`
	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Email != "jo@example.co.uk" || got.Category != domain.CategoryGarage {
		t.Fatalf("unexpected command %+v", got)
	}

	var body contactResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.LeadID != "lead-1" || body.Status != string(domain.LeadStatusNew) {
		t.Fatalf("unexpected response %+v", body)
	}
}

func TestContactDisabledRespondsNotFound(t *testing.T) {
	router := newContactRouter(&stubLeadService{}, false)

	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":"Jo"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestContactValidationFailure(t *testing.T) {
	service := &stubLeadService{
		captureFunc: func(ctx context.Context, cmd services.CaptureLeadCommand) (domain.Lead, error) {
			verr := &services.ValidationError{}
			verr.Add("email", "a valid email address is required")
			return domain.Lead{}, verr
		},
	}
	router := newContactRouter(service, true)

	req := httptest.NewRequest(http.MethodPost, "/contact", strings.NewReader(`{"name":"Jo","email":"nope"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Fields []struct {
			Field string `json:"field"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "email" {
		t.Fatalf("unexpected field violations %+v", body.Fields)
	}
}
