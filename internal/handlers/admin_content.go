package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/auth"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

const maxPageBodySize = 512 * 1024

// AdminContentHandlers exposes editorial page management endpoints.
type AdminContentHandlers struct {
	authn   *auth.Authenticator
	content services.ContentService
}

// NewAdminContentHandlers constructs admin content handlers.
func NewAdminContentHandlers(authn *auth.Authenticator, content services.ContentService) *AdminContentHandlers {
	return &AdminContentHandlers{authn: authn, content: content}
}

// Routes registers admin content endpoints.
func (h *AdminContentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireStaff())
	}
	r.Route("/pages", func(rt chi.Router) {
		rt.Get("/", h.listPages)
		rt.Post("/", h.createPage)
		rt.Get("/{pageId}", h.getPage)
		rt.Put("/{pageId}", h.updatePage)
		rt.Delete("/{pageId}", h.deletePage)
		rt.Post("/{pageId}/images", h.imageUploadURL)
	})
}

func (h *AdminContentHandlers) listPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := paginationQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.content.AdminListPages(ctx, pager)
	if err != nil {
		h.writeAdminContentError(ctx, w, err)
		return
	}

	pages := make([]adminPagePayload, 0, len(page.Items))
	for _, item := range page.Items {
		pages = append(pages, buildAdminPagePayload(item))
	}
	writeJSONResponse(w, http.StatusOK, adminPageListResponse{
		Pages:         pages,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminContentHandlers) getPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pageID := strings.TrimSpace(chi.URLParam(r, "pageId"))
	page, err := h.content.AdminGetPage(ctx, pageID)
	if err != nil {
		h.writeAdminContentError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, adminPageResponse{Page: buildAdminPagePayload(page)})
}

func (h *AdminContentHandlers) createPage(w http.ResponseWriter, r *http.Request) {
	h.savePage(w, r, "")
}

func (h *AdminContentHandlers) updatePage(w http.ResponseWriter, r *http.Request) {
	h.savePage(w, r, strings.TrimSpace(chi.URLParam(r, "pageId")))
}

func (h *AdminContentHandlers) savePage(w http.ResponseWriter, r *http.Request, pageID string) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxPageBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req upsertPageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.UpsertPageCommand{
		PageID:    pageID,
		Slug:      strings.TrimSpace(req.Slug),
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		Excerpt:   strings.TrimSpace(req.Excerpt),
		HeroImage: strings.TrimSpace(req.HeroImage),
		Published: req.Published,
		UpdatedBy: identity.UID,
	}

	var page domain.ContentPage
	if pageID == "" {
		page, err = h.content.CreatePage(ctx, cmd)
	} else {
		page, err = h.content.UpdatePage(ctx, cmd)
	}
	if err != nil {
		h.writeAdminContentError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if pageID == "" {
		status = http.StatusCreated
	}
	writeJSONResponse(w, status, adminPageResponse{Page: buildAdminPagePayload(page)})
}

func (h *AdminContentHandlers) deletePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pageID := strings.TrimSpace(chi.URLParam(r, "pageId"))
	if err := h.content.DeletePage(ctx, pageID); err != nil {
		h.writeAdminContentError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminContentHandlers) imageUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxSettingsBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req pageImageUploadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	pageID := strings.TrimSpace(chi.URLParam(r, "pageId"))
	page, err := h.content.AdminGetPage(ctx, pageID)
	if err != nil {
		h.writeAdminContentError(ctx, w, err)
		return
	}

	upload, err := h.content.PageImageUploadURL(ctx, services.PageImageUploadCommand{
		PageSlug:    page.Slug,
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
	})
	if err != nil {
		h.writeAdminContentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, pageImageUploadResponse{
		URL:        upload.URL,
		ObjectPath: upload.ObjectPath,
		ExpiresAt:  upload.ExpiresAt.Format(timeFormat),
	})
}

func (h *AdminContentHandlers) writeAdminContentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrContentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrContentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("page_not_found", "page not found", http.StatusNotFound))
	case errors.Is(err, services.ErrContentConflict):
		httpx.WriteError(ctx, w, httpx.NewError("page_conflict", "slug is already in use", http.StatusConflict))
	case errors.Is(err, services.ErrContentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("content_error", "failed to serve content request", http.StatusInternalServerError))
	}
}

type upsertPageRequest struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Excerpt   string `json:"excerpt"`
	HeroImage string `json:"heroImage"`
	Published bool   `json:"published"`
}

type pageImageUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type pageImageUploadResponse struct {
	URL        string `json:"url"`
	ObjectPath string `json:"objectPath"`
	ExpiresAt  string `json:"expiresAt"`
}

type adminPageResponse struct {
	Page adminPagePayload `json:"page"`
}

type adminPageListResponse struct {
	Pages         []adminPagePayload `json:"pages"`
	NextPageToken string             `json:"nextPageToken,omitempty"`
}

type adminPagePayload struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Excerpt     string `json:"excerpt,omitempty"`
	HeroImage   string `json:"heroImage,omitempty"`
	Published   bool   `json:"published"`
	PublishedAt string `json:"publishedAt,omitempty"`
	UpdatedBy   string `json:"updatedBy,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func buildAdminPagePayload(page domain.ContentPage) adminPagePayload {
	payload := adminPagePayload{
		ID:        page.ID,
		Slug:      page.Slug,
		Title:     page.Title,
		Body:      page.Body,
		Excerpt:   page.Excerpt,
		HeroImage: page.HeroImage,
		Published: page.Published,
		UpdatedBy: page.UpdatedBy,
		CreatedAt: page.CreatedAt.Format(timeFormat),
		UpdatedAt: page.UpdatedAt.Format(timeFormat),
	}
	if page.PublishedAt != nil {
		payload.PublishedAt = page.PublishedAt.Format(timeFormat)
	}
	return payload
}
