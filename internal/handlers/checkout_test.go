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

type stubCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.checkoutFunc != nil {
		return s.checkoutFunc(ctx, cmd)
	}
	return services.CheckoutResult{}, nil
}

func newCheckoutRouter(service services.CheckoutService) chi.Router {
	handler := NewCheckoutHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/checkout", handler.Routes)
	return router
}

const checkoutBody = `{
	"email": "customer@example.co.uk",
	"paymentMethod": "invoice",
	"billingAddress": {
		"name": "Jo Bloggs",
		"line1": "1 Mill Lane",
		"city": "York",
		"postcode": "YO1 7HH"
	}
}`

func TestCheckoutPlacesOrder(t *testing.T) {
	placed := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	var got services.CheckoutCommand

	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			got = cmd
			return services.CheckoutResult{Order: domain.Order{
				ID:            "order-1",
				Number:        "TL-10001",
				UserID:        cmd.UserID,
				Email:         cmd.Email,
				Status:        domain.OrderStatusPending,
				PaymentMethod: cmd.PaymentMethod,
				PaymentStatus: domain.PaymentStatusPending,
				Totals: domain.BasketTotals{
					Subtotal: domain.Money(1100000),
					VAT:      domain.Money(220000),
					Total:    domain.Money(1320000),
				},
				BillingAddress: domain.Address{
					Name:     cmd.BillingAddress.Name,
					Line1:    cmd.BillingAddress.Line1,
					City:     cmd.BillingAddress.City,
					Postcode: cmd.BillingAddress.Postcode,
					Country:  "GB",
				},
				PlacedAt:  placed,
				UpdatedAt: placed,
			}}, nil
		},
	}
	router := newCheckoutRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody)), "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.UserID != "user-7" || got.PaymentMethod != domain.PaymentMethodInvoice {
		t.Fatalf("unexpected command %+v", got)
	}
	if got.BillingAddress.Postcode != "YO1 7HH" {
		t.Fatalf("expected the billing address forwarded, got %+v", got.BillingAddress)
	}

	var body checkoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Order.Number != "TL-10001" || body.Order.Status != string(domain.OrderStatusPending) {
		t.Fatalf("unexpected order payload %+v", body.Order)
	}
	if body.Order.Totals.Total != 1320000 {
		t.Fatalf("unexpected order totals %+v", body.Order.Totals)
	}
}

func TestCheckoutFallsBackToIdentityEmail(t *testing.T) {
	var got services.CheckoutCommand
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			got = cmd
			return services.CheckoutResult{Order: domain.Order{ID: "order-1"}}, nil
		},
	}
	router := newCheckoutRouter(service)

	payload := `{"paymentMethod":"invoice","billingAddress":{"name":"Jo","line1":"1 Mill Lane","city":"York","postcode":"YO1 7HH"}}`
	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(payload))
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "user-7", Email: "jo@example.co.uk"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Email != "jo@example.co.uk" {
		t.Fatalf("expected the identity email used, got %q", got.Email)
	}
}

func TestCheckoutPaymentDeclined(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, services.ErrCheckoutPaymentDeclined
		},
	}
	router := newCheckoutRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody)), "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "payment_declined" {
		t.Fatalf("expected payment_declined, got %v", body["error"])
	}
}

func TestCheckoutEmptyBasket(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			return services.CheckoutResult{}, services.ErrCheckoutEmptyBasket
		},
	}
	router := newCheckoutRouter(service)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody)), "user-7")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != "basket_empty" {
		t.Fatalf("expected basket_empty, got %v", body["error"])
	}
}

func TestCheckoutRequiresIdentity(t *testing.T) {
	router := newCheckoutRouter(&stubCheckoutService{})

	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(checkoutBody))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
