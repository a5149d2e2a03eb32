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

// CheckoutHandlers converts the caller's basket into an order.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

const maxCheckoutBodySize = 32 * 1024

// NewCheckoutHandlers constructs handlers enforcing Firebase authentication before invoking checkout.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoint onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.checkoutBasket)
}

func (h *CheckoutHandlers) checkoutBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CheckoutCommand{
		UserID:         identity.UID,
		Email:          strings.TrimSpace(req.Email),
		PaymentMethod:  domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		PaymentToken:   strings.TrimSpace(req.PaymentToken),
		BillingAddress: checkoutAddressFromRequest(req.BillingAddress),
		Notes:          strings.TrimSpace(req.Notes),
	}
	if req.ShippingAddress != nil {
		shipping := checkoutAddressFromRequest(*req.ShippingAddress)
		cmd.ShippingAddress = &shipping
	}
	if cmd.Email == "" && identity.Email != "" {
		cmd.Email = identity.Email
	}

	result, err := h.checkout.Checkout(ctx, cmd)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{Order: buildOrderPayload(result.Order)})
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyBasket):
		httpx.WriteError(ctx, w, httpx.NewError("basket_empty", "basket is empty", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutPaymentDeclined):
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", "payment was declined", http.StatusPaymentRequired))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to complete checkout", http.StatusInternalServerError))
	}
}

type checkoutRequest struct {
	Email           string                  `json:"email"`
	PaymentMethod   string                  `json:"paymentMethod"`
	PaymentToken    string                  `json:"paymentToken"`
	BillingAddress  checkoutAddressRequest  `json:"billingAddress"`
	ShippingAddress *checkoutAddressRequest `json:"shippingAddress"`
	Notes           string                  `json:"notes"`
}

type checkoutAddressRequest struct {
	Name     string `json:"name"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	County   string `json:"county"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type checkoutResponse struct {
	Order orderPayload `json:"order"`
}

func checkoutAddressFromRequest(req checkoutAddressRequest) services.CheckoutAddress {
	return services.CheckoutAddress{
		Name:     strings.TrimSpace(req.Name),
		Line1:    strings.TrimSpace(req.Line1),
		Line2:    strings.TrimSpace(req.Line2),
		City:     strings.TrimSpace(req.City),
		County:   strings.TrimSpace(req.County),
		Postcode: strings.TrimSpace(req.Postcode),
		Country:  strings.TrimSpace(req.Country),
		Phone:    strings.TrimSpace(req.Phone),
	}
}
