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

// BasketHandlers exposes authenticated basket endpoints for the current user.
type BasketHandlers struct {
	authn   *auth.Authenticator
	baskets services.BasketService
}

const maxBasketBodySize = 16 * 1024

// NewBasketHandlers constructs handlers enforcing Firebase authentication before invoking the basket service.
func NewBasketHandlers(authn *auth.Authenticator, baskets services.BasketService) *BasketHandlers {
	return &BasketHandlers{
		authn:   authn,
		baskets: baskets,
	}
}

// Routes wires the /basket endpoints onto the provided router.
func (h *BasketHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getBasket)
	r.Delete("/", h.clearBasket)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemId}", h.updateItem)
	r.Delete("/items/{itemId}", h.removeItem)
}

func (h *BasketHandlers) getBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.baskets.GetBasket(ctx, identity.UID)
	if err != nil {
		h.writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBasketPayload(view))
}

func (h *BasketHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxBasketBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req addBasketItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.AddBasketItemCommand{
		UserID:        identity.UID,
		Category:      domain.ProductCategory(strings.TrimSpace(req.Category)),
		Configuration: domain.Configuration(req.Configuration),
		Quantity:      req.Quantity,
	}

	view, err := h.baskets.AddItem(ctx, cmd)
	if err != nil {
		h.writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildBasketPayload(view))
}

func (h *BasketHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxBasketBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req updateBasketItemRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateBasketItemCommand{
		UserID:   identity.UID,
		ItemID:   strings.TrimSpace(chi.URLParam(r, "itemId")),
		Quantity: req.Quantity,
	}

	view, err := h.baskets.UpdateItemQuantity(ctx, cmd)
	if err != nil {
		h.writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBasketPayload(view))
}

func (h *BasketHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	itemID := strings.TrimSpace(chi.URLParam(r, "itemId"))
	view, err := h.baskets.RemoveItem(ctx, identity.UID, itemID)
	if err != nil {
		h.writeBasketError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildBasketPayload(view))
}

func (h *BasketHandlers) clearBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.baskets.ClearBasket(ctx, identity.UID); err != nil {
		h.writeBasketError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BasketHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.baskets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *BasketHandlers) writeBasketError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrBasketInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBasketNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("basket_item_not_found", "basket item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrBasketConflict):
		httpx.WriteError(ctx, w, httpx.NewError("basket_conflict", "basket has been modified; refresh and retry", http.StatusConflict))
	case errors.Is(err, services.ErrBasketUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("basket_service_unavailable", "basket service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("basket_error", "failed to serve basket request", http.StatusInternalServerError))
	}
}

type addBasketItemRequest struct {
	Category      string         `json:"category"`
	Configuration map[string]any `json:"configuration"`
	Quantity      int64          `json:"quantity"`
}

type updateBasketItemRequest struct {
	Quantity int64 `json:"quantity"`
}

type basketPayload struct {
	Items     []basketItemPayload `json:"items"`
	Totals    basketTotalsPayload `json:"totals"`
	UpdatedAt string              `json:"updatedAt,omitempty"`
}

type basketItemPayload struct {
	ID            string         `json:"id"`
	Category      string         `json:"category"`
	Description   string         `json:"description"`
	Configuration map[string]any `json:"configuration"`
	UnitPrice     int64          `json:"unitPrice"`
	Quantity      int64          `json:"quantity"`
	LineTotal     int64          `json:"lineTotal"`
	AddedAt       string         `json:"addedAt"`
}

type basketTotalsPayload struct {
	Subtotal int64  `json:"subtotal"`
	VAT      int64  `json:"vat"`
	Shipping int64  `json:"shipping"`
	Total    int64  `json:"total"`
	Display  string `json:"totalDisplay"`
}

func buildBasketPayload(view services.BasketView) basketPayload {
	items := make([]basketItemPayload, 0, len(view.Basket.Items))
	for _, item := range view.Basket.Items {
		items = append(items, basketItemPayload{
			ID:            item.ID,
			Category:      string(item.Category),
			Description:   item.Description,
			Configuration: map[string]any(item.Configuration),
			UnitPrice:     item.UnitPrice.Pence(),
			Quantity:      item.Quantity,
			LineTotal:     item.LineTotal().Pence(),
			AddedAt:       item.AddedAt.Format(timeFormat),
		})
	}
	payload := basketPayload{
		Items:  items,
		Totals: buildBasketTotalsPayload(view.Totals),
	}
	if !view.Basket.UpdatedAt.IsZero() {
		payload.UpdatedAt = view.Basket.UpdatedAt.Format(timeFormat)
	}
	return payload
}

func buildBasketTotalsPayload(totals domain.BasketTotals) basketTotalsPayload {
	return basketTotalsPayload{
		Subtotal: totals.Subtotal.Pence(),
		VAT:      totals.VAT.Pence(),
		Shipping: totals.Shipping.Pence(),
		Total:    totals.Total.Pence(),
		Display:  totals.Total.String(),
	}
}
