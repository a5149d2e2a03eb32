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

// ContactHandlers accepts sales enquiries from the public contact form.
type ContactHandlers struct {
	leads   services.LeadService
	enabled bool
}

const maxContactBodySize = 32 * 1024

// NewContactHandlers constructs the public enquiry endpoint. When enabled is
// false the endpoint responds with 404 so the form can be switched off per
// environment.
func NewContactHandlers(leads services.LeadService, enabled bool) *ContactHandlers {
	return &ContactHandlers{leads: leads, enabled: enabled}
}

// Routes wires the contact endpoint onto the provided router.
func (h *ContactHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/contact", h.captureLead)
}

func (h *ContactHandlers) captureLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.enabled {
		httpx.WriteError(ctx, w, httpx.NewError(errorNotFoundCode, "lead capture is not available", http.StatusNotFound))
		return
	}
	if h.leads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("lead_service_unavailable", "lead service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxContactBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req contactRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CaptureLeadCommand{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Message:  strings.TrimSpace(req.Message),
		Category: domain.ProductCategory(strings.TrimSpace(req.Category)),
		Source:   strings.TrimSpace(req.Source),
	}

	lead, err := h.leads.CaptureLead(ctx, cmd)
	if err != nil {
		h.writeLeadError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, contactResponse{
		LeadID:    lead.ID,
		Status:    string(lead.Status),
		CreatedAt: lead.CreatedAt.Format(timeFormat),
	})
}

func (h *ContactHandlers) writeLeadError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrLeadInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrLeadUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("lead_service_unavailable", "lead service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("lead_error", "failed to record enquiry", http.StatusInternalServerError))
	}
}

type contactRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

type contactResponse struct {
	LeadID    string `json:"leadId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}
