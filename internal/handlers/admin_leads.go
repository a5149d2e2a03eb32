package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/auth"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/repositories"
	"github.com/timberline/api/internal/services"
)

const maxLeadUpdateBodySize = 32 * 1024

// AdminLeadHandlers exposes the back-office enquiry pipeline.
type AdminLeadHandlers struct {
	authn *auth.Authenticator
	leads services.LeadService
}

// NewAdminLeadHandlers constructs admin lead handlers.
func NewAdminLeadHandlers(authn *auth.Authenticator, leads services.LeadService) *AdminLeadHandlers {
	return &AdminLeadHandlers{authn: authn, leads: leads}
}

// Routes registers admin lead endpoints.
func (h *AdminLeadHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireStaff())
	}
	r.Route("/leads", func(rt chi.Router) {
		rt.Get("/", h.listLeads)
		rt.Get("/{leadId}", h.getLead)
		rt.Patch("/{leadId}", h.updateLead)
	})
}

func (h *AdminLeadHandlers) listLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.leads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("lead_service_unavailable", "lead service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := paginationQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := repositories.LeadListFilter{
		Status:     domain.LeadStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
		Category:   domain.ProductCategory(strings.TrimSpace(r.URL.Query().Get("category"))),
		Pagination: pager,
	}

	page, err := h.leads.ListLeads(ctx, filter)
	if err != nil {
		h.writeAdminLeadError(w, r, err)
		return
	}

	leads := make([]leadPayload, 0, len(page.Items))
	for _, lead := range page.Items {
		leads = append(leads, buildLeadPayload(lead))
	}
	writeJSONResponse(w, http.StatusOK, leadListResponse{
		Leads:         leads,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminLeadHandlers) getLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.leads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("lead_service_unavailable", "lead service is unavailable", http.StatusServiceUnavailable))
		return
	}

	leadID := strings.TrimSpace(chi.URLParam(r, "leadId"))
	lead, err := h.leads.GetLead(ctx, leadID)
	if err != nil {
		h.writeAdminLeadError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, leadResponse{Lead: buildLeadPayload(lead)})
}

func (h *AdminLeadHandlers) updateLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.leads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("lead_service_unavailable", "lead service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxLeadUpdateBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateLeadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateLeadCommand{
		LeadID: strings.TrimSpace(chi.URLParam(r, "leadId")),
		Status: domain.LeadStatus(strings.TrimSpace(req.Status)),
		Notes:  strings.TrimSpace(req.Notes),
	}

	lead, err := h.leads.UpdateLead(ctx, cmd)
	if err != nil {
		h.writeAdminLeadError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, leadResponse{Lead: buildLeadPayload(lead)})
}

func (h *AdminLeadHandlers) writeAdminLeadError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrLeadInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrLeadNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("lead_not_found", "lead not found", http.StatusNotFound))
	case errors.Is(err, services.ErrLeadUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("lead_service_unavailable", "lead service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("lead_error", "failed to serve lead request", http.StatusInternalServerError))
	}
}

type updateLeadRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type leadResponse struct {
	Lead leadPayload `json:"lead"`
}

type leadListResponse struct {
	Leads         []leadPayload `json:"leads"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

type leadPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Message   string `json:"message"`
	Category  string `json:"category,omitempty"`
	Source    string `json:"source,omitempty"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func buildLeadPayload(lead domain.Lead) leadPayload {
	return leadPayload{
		ID:        lead.ID,
		Name:      lead.Name,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Message:   lead.Message,
		Category:  string(lead.Category),
		Source:    lead.Source,
		Status:    string(lead.Status),
		Notes:     lead.Notes,
		CreatedAt: lead.CreatedAt.Format(timeFormat),
		UpdatedAt: lead.UpdatedAt.Format(timeFormat),
	}
}
