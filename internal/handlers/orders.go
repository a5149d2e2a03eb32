package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/auth"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

// OrderHandlers exposes order history for the authenticated customer.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs handlers enforcing Firebase authentication before invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	pager, err := paginationQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, identity.UID, pager)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildOrderListResponse(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	order, err := h.orders.GetOrder(ctx, identity.UID, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to serve order request", http.StatusInternalServerError))
	}
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	Number          string                `json:"number"`
	Email           string                `json:"email"`
	Items           []basketItemPayload   `json:"items"`
	Totals          basketTotalsPayload   `json:"totals"`
	Status          string                `json:"status"`
	StatusHistory   []statusChangePayload `json:"statusHistory,omitempty"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentStatus   string                `json:"paymentStatus"`
	BillingAddress  orderAddressPayload   `json:"billingAddress"`
	ShippingAddress orderAddressPayload   `json:"shippingAddress"`
	Notes           string                `json:"notes,omitempty"`
	PlacedAt        string                `json:"placedAt"`
	UpdatedAt       string                `json:"updatedAt"`
}

type statusChangePayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ChangedBy string `json:"changedBy,omitempty"`
	ChangedAt string `json:"changedAt"`
	Note      string `json:"note,omitempty"`
}

type orderAddressPayload struct {
	Name     string `json:"name"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city"`
	County   string `json:"county,omitempty"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone,omitempty"`
}

func buildOrderListResponse(page domain.CursorPage[domain.Order]) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		orders = append(orders, buildOrderPayload(order))
	}
	return orderListResponse{
		Orders:        orders,
		NextPageToken: page.NextPageToken,
	}
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]basketItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
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

	history := make([]statusChangePayload, 0, len(order.StatusHistory))
	for _, change := range order.StatusHistory {
		history = append(history, statusChangePayload{
			From:      string(change.From),
			To:        string(change.To),
			ChangedBy: change.ChangedBy,
			ChangedAt: change.ChangedAt.Format(timeFormat),
			Note:      change.Note,
		})
	}

	return orderPayload{
		ID:              order.ID,
		Number:          order.Number,
		Email:           order.Email,
		Items:           items,
		Totals:          buildBasketTotalsPayload(order.Totals),
		Status:          string(order.Status),
		StatusHistory:   history,
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		BillingAddress:  buildOrderAddressPayload(order.BillingAddress),
		ShippingAddress: buildOrderAddressPayload(order.ShippingAddress),
		Notes:           order.Notes,
		PlacedAt:        order.PlacedAt.Format(timeFormat),
		UpdatedAt:       order.UpdatedAt.Format(timeFormat),
	}
}

func buildOrderAddressPayload(addr domain.Address) orderAddressPayload {
	return orderAddressPayload{
		Name:     addr.Name,
		Line1:    addr.Line1,
		Line2:    addr.Line2,
		City:     addr.City,
		County:   addr.County,
		Postcode: addr.Postcode,
		Country:  addr.Country,
		Phone:    addr.Phone,
	}
}
