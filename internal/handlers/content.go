package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

// ContentHandlers serves published editorial pages to the storefront.
type ContentHandlers struct {
	content services.ContentService
}

// NewContentHandlers constructs handlers for the public pages surface.
func NewContentHandlers(content services.ContentService) *ContentHandlers {
	return &ContentHandlers{content: content}
}

// Routes wires the public page endpoints onto the provided router.
func (h *ContentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/pages", h.listPages)
	r.Get("/pages/{slug}", h.getPage)
}

func (h *ContentHandlers) listPages(w http.ResponseWriter, r *http.Request) {
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

	page, err := h.content.ListPublishedPages(ctx, pager)
	if err != nil {
		h.writeContentError(ctx, w, err)
		return
	}

	items := make([]pageSummaryPayload, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, buildPageSummaryPayload(item))
	}
	writeJSONResponse(w, http.StatusOK, pageListResponse{
		Pages:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *ContentHandlers) getPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	page, err := h.content.GetPublishedPage(ctx, slug)
	if err != nil {
		h.writeContentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildPagePayload(page))
}

func (h *ContentHandlers) writeContentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrContentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrContentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("page_not_found", "page not found", http.StatusNotFound))
	case errors.Is(err, services.ErrContentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("content_service_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("content_error", "failed to serve page", http.StatusInternalServerError))
	}
}

type pageListResponse struct {
	Pages         []pageSummaryPayload `json:"pages"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

type pageSummaryPayload struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Excerpt     string `json:"excerpt,omitempty"`
	HeroImage   string `json:"heroImage,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

type pagePayload struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Excerpt     string `json:"excerpt,omitempty"`
	HeroImage   string `json:"heroImage,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	UpdatedAt   string `json:"updatedAt"`
}

func buildPageSummaryPayload(page domain.ContentPage) pageSummaryPayload {
	payload := pageSummaryPayload{
		Slug:      page.Slug,
		Title:     page.Title,
		Excerpt:   page.Excerpt,
		HeroImage: page.HeroImage,
	}
	if page.PublishedAt != nil {
		payload.PublishedAt = page.PublishedAt.Format(timeFormat)
	}
	return payload
}

func buildPagePayload(page domain.ContentPage) pagePayload {
	payload := pagePayload{
		Slug:      page.Slug,
		Title:     page.Title,
		Body:      page.Body,
		Excerpt:   page.Excerpt,
		HeroImage: page.HeroImage,
		UpdatedAt: page.UpdatedAt.Format(timeFormat),
	}
	if page.PublishedAt != nil {
		payload.PublishedAt = page.PublishedAt.Format(timeFormat)
	}
	return payload
}
