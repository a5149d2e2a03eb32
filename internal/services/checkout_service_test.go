package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/payments"
	"github.com/timberline/api/internal/repositories"
)

type stubOrderRepository struct {
	insertFunc           func(ctx context.Context, order domain.Order) (domain.Order, error)
	findByIDFunc         func(ctx context.Context, orderID string) (domain.Order, error)
	findByNumberFunc     func(ctx context.Context, number string) (domain.Order, error)
	findByPaymentRefFunc func(ctx context.Context, reference string) (domain.Order, error)
	listByUserFunc       func(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
	listFunc             func(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	updateStatusFunc     func(ctx context.Context, orderID string, change domain.StatusChange) (domain.Order, error)
	updatePaymentFunc    func(ctx context.Context, orderID string, status domain.PaymentStatus, reference string) (domain.Order, error)
	nextOrderNumberFunc  func(ctx context.Context) (string, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.insertFunc != nil {
		return s.insertFunc(ctx, order)
	}
	return order, nil
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFunc != nil {
		return s.findByIDFunc(ctx, orderID)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

func (s *stubOrderRepository) FindByNumber(ctx context.Context, number string) (domain.Order, error) {
	if s.findByNumberFunc != nil {
		return s.findByNumberFunc(ctx, number)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

func (s *stubOrderRepository) FindByPaymentRef(ctx context.Context, reference string) (domain.Order, error) {
	if s.findByPaymentRefFunc != nil {
		return s.findByPaymentRefFunc(ctx, reference)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

func (s *stubOrderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if s.listByUserFunc != nil {
		return s.listByUserFunc(ctx, userID, pager)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, orderID string, change domain.StatusChange) (domain.Order, error) {
	if s.updateStatusFunc != nil {
		return s.updateStatusFunc(ctx, orderID, change)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

func (s *stubOrderRepository) UpdatePayment(ctx context.Context, orderID string, status domain.PaymentStatus, reference string) (domain.Order, error) {
	if s.updatePaymentFunc != nil {
		return s.updatePaymentFunc(ctx, orderID, status, reference)
	}
	return domain.Order{}, &repositoryErrorStub{notFound: true}
}

func (s *stubOrderRepository) NextOrderNumber(ctx context.Context) (string, error) {
	if s.nextOrderNumberFunc != nil {
		return s.nextOrderNumberFunc(ctx)
	}
	return "TL-10001", nil
}

type stubPaymentCapturer struct {
	captureFunc  func(ctx context.Context, method string, req payments.CaptureRequest) (payments.PaymentDetails, error)
	supportsFunc func(method string) bool
}

func (s *stubPaymentCapturer) Capture(ctx context.Context, method string, req payments.CaptureRequest) (payments.PaymentDetails, error) {
	if s.captureFunc != nil {
		return s.captureFunc(ctx, method, req)
	}
	return payments.PaymentDetails{Method: method, Reference: "ref-1", Status: payments.StatusPending}, nil
}

func (s *stubPaymentCapturer) Supports(method string) bool {
	if s.supportsFunc != nil {
		return s.supportsFunc(method)
	}
	return true
}

type stubOrderPublisher struct {
	publishFunc func(ctx context.Context, message OrderPlacedMessage) (string, error)
}

func (s *stubOrderPublisher) PublishOrderPlaced(ctx context.Context, message OrderPlacedMessage) (string, error) {
	if s.publishFunc != nil {
		return s.publishFunc(ctx, message)
	}
	return "msg-1", nil
}

func validCheckoutCommand() CheckoutCommand {
	return CheckoutCommand{
		UserID:        "user-1",
		Email:         "customer@example.co.uk",
		PaymentMethod: domain.PaymentMethodInvoice,
		BillingAddress: CheckoutAddress{
			Name:     "Jo Bloggs",
			Line1:    "1 Mill Lane",
			City:     "York",
			Postcode: "yo1 7hh",
		},
	}
}

func newTestCheckoutService(t *testing.T, deps CheckoutServiceDeps) CheckoutService {
	t.Helper()
	if deps.Baskets == nil {
		deps.Baskets = &stubBasketRepository{}
	}
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepository{}
	}
	if deps.Settings == nil {
		deps.Settings = &stubSettingsSource{}
	}
	if deps.Pricer == nil {
		deps.Pricer = &stubBasketPricer{}
	}
	if deps.Payments == nil {
		deps.Payments = &stubPaymentCapturer{}
	}
	service, err := NewCheckoutService(deps)
	if err != nil {
		t.Fatalf("unexpected error constructing checkout service: %v", err)
	}
	return service
}

func TestCheckoutServicePlacesPendingOrder(t *testing.T) {
	now := time.Date(2025, 4, 2, 14, 30, 0, 0, time.UTC)

	basket := domain.Basket{
		OwnerID: "user-1",
		Items: []domain.BasketItem{{
			ID:        "item-1",
			Category:  domain.CategoryGarage,
			UnitPrice: 1100000,
			Quantity:  1,
		}},
	}

	var inserted domain.Order
	cleared := ""
	var published *OrderPlacedMessage

	orders := &stubOrderRepository{
		insertFunc: func(ctx context.Context, order domain.Order) (domain.Order, error) {
			inserted = order
			return order, nil
		},
	}
	baskets := &stubBasketRepository{
		getFunc: func(ctx context.Context, ownerID string) (domain.Basket, error) {
			return basket, nil
		},
		clearFunc: func(ctx context.Context, ownerID string) error {
			cleared = ownerID
			return nil
		},
	}
	capturer := &stubPaymentCapturer{
		captureFunc: func(ctx context.Context, method string, req payments.CaptureRequest) (payments.PaymentDetails, error) {
			if method != "invoice" {
				t.Fatalf("unexpected method %q", method)
			}
			if req.Currency != "GBP" {
				t.Fatalf("expected GBP capture, got %q", req.Currency)
			}
			if req.Amount != 1320000 {
				t.Fatalf("expected capture amount 1320000, got %d", req.Amount)
			}
			return payments.PaymentDetails{Reference: "inv_order-1_1712000000", Status: payments.StatusPending}, nil
		},
	}
	publisher := &stubOrderPublisher{
		publishFunc: func(ctx context.Context, message OrderPlacedMessage) (string, error) {
			published = &message
			return "msg-1", nil
		},
	}
	pricer := &stubBasketPricer{
		totalsFunc: func(items []domain.BasketItem, settings domain.DeliverySettings) domain.BasketTotals {
			return domain.BasketTotals{Subtotal: 1100000, VAT: 220000, Shipping: 0, Total: 1320000}
		},
	}

	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Baskets:     baskets,
		Orders:      orders,
		Pricer:      pricer,
		Payments:    capturer,
		Publisher:   publisher,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "order-1" },
	})

	result, err := service.Checkout(context.Background(), validCheckoutCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Order.ID != "order-1" || inserted.ID != "order-1" {
		t.Fatalf("expected order id order-1, got %q", result.Order.ID)
	}
	if inserted.Number != "TL-10001" {
		t.Fatalf("expected order number TL-10001, got %q", inserted.Number)
	}
	if inserted.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", inserted.Status)
	}
	if inserted.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %q", inserted.PaymentStatus)
	}
	if inserted.PaymentRef == "" {
		t.Fatalf("expected the payment reference to be stored")
	}
	if inserted.Totals.Total != 1320000 {
		t.Fatalf("expected total 1320000, got %d", inserted.Totals.Total)
	}
	if inserted.BillingAddress.Postcode != "YO1 7HH" {
		t.Fatalf("expected the postcode uppercased, got %q", inserted.BillingAddress.Postcode)
	}
	if inserted.BillingAddress.Country != "GB" {
		t.Fatalf("expected GB as the default country, got %q", inserted.BillingAddress.Country)
	}
	if inserted.ShippingAddress.Line1 != "1 Mill Lane" {
		t.Fatalf("expected shipping to fall back to billing, got %q", inserted.ShippingAddress.Line1)
	}
	if len(inserted.StatusHistory) != 1 || inserted.StatusHistory[0].Note != "order placed" {
		t.Fatalf("expected an initial status history entry, got %+v", inserted.StatusHistory)
	}
	if cleared != "user-1" {
		t.Fatalf("expected the basket to be cleared, got %q", cleared)
	}
	if published == nil {
		t.Fatalf("expected the order placed event to publish")
	}
	if published.OrderNumber != "TL-10001" || published.Total != 1320000 {
		t.Fatalf("unexpected published message %+v", published)
	}
}

func TestCheckoutServiceInvalidPostcodeLeavesNoOrder(t *testing.T) {
	captures := 0
	inserts := 0
	capturer := &stubPaymentCapturer{
		captureFunc: func(ctx context.Context, method string, req payments.CaptureRequest) (payments.PaymentDetails, error) {
			captures++
			return payments.PaymentDetails{}, nil
		},
	}
	orders := &stubOrderRepository{
		insertFunc: func(ctx context.Context, order domain.Order) (domain.Order, error) {
			inserts++
			return order, nil
		},
	}

	service := newTestCheckoutService(t, CheckoutServiceDeps{Orders: orders, Payments: capturer})

	cmd := validCheckoutCommand()
	cmd.BillingAddress.Postcode = "12"

	_, err := service.Checkout(context.Background(), cmd)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if len(validationErr.Violations) != 1 || validationErr.Violations[0].Field != "billing.postcode" {
		t.Fatalf("expected a billing.postcode violation, got %v", validationErr.Violations)
	}
	if captures != 0 || inserts != 0 {
		t.Fatalf("expected no capture or insert, got %d captures and %d inserts", captures, inserts)
	}
}

func TestCheckoutServiceCardWithoutTokenFails(t *testing.T) {
	service := newTestCheckoutService(t, CheckoutServiceDeps{})

	cmd := validCheckoutCommand()
	cmd.PaymentMethod = domain.PaymentMethodCard

	_, err := service.Checkout(context.Background(), cmd)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if validationErr.Violations[0].Field != "paymentToken" {
		t.Fatalf("expected a paymentToken violation, got %v", validationErr.Violations)
	}
}

func TestCheckoutServiceDisabledMethodFailsValidation(t *testing.T) {
	capturer := &stubPaymentCapturer{
		supportsFunc: func(method string) bool { return false },
	}
	service := newTestCheckoutService(t, CheckoutServiceDeps{Payments: capturer})

	_, err := service.Checkout(context.Background(), validCheckoutCommand())

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if validationErr.Violations[0].Field != "paymentMethod" {
		t.Fatalf("expected a paymentMethod violation, got %v", validationErr.Violations)
	}
}

func TestCheckoutServiceEmptyBasket(t *testing.T) {
	baskets := &stubBasketRepository{
		getFunc: func(ctx context.Context, ownerID string) (domain.Basket, error) {
			return domain.Basket{OwnerID: ownerID}, nil
		},
	}
	service := newTestCheckoutService(t, CheckoutServiceDeps{Baskets: baskets})

	_, err := service.Checkout(context.Background(), validCheckoutCommand())
	if !errors.Is(err, ErrCheckoutEmptyBasket) {
		t.Fatalf("expected ErrCheckoutEmptyBasket, got %v", err)
	}
}

func TestCheckoutServiceMissingBasketIsEmpty(t *testing.T) {
	baskets := &stubBasketRepository{
		getFunc: func(ctx context.Context, ownerID string) (domain.Basket, error) {
			return domain.Basket{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestCheckoutService(t, CheckoutServiceDeps{Baskets: baskets})

	_, err := service.Checkout(context.Background(), validCheckoutCommand())
	if !errors.Is(err, ErrCheckoutEmptyBasket) {
		t.Fatalf("expected ErrCheckoutEmptyBasket, got %v", err)
	}
}

func TestCheckoutServiceDeclinedPaymentLeavesBasketIntact(t *testing.T) {
	inserts := 0
	clears := 0

	baskets := &stubBasketRepository{
		getFunc: func(ctx context.Context, ownerID string) (domain.Basket, error) {
			return domain.Basket{OwnerID: ownerID, Items: []domain.BasketItem{{ID: "item-1", UnitPrice: 100000, Quantity: 1}}}, nil
		},
		clearFunc: func(ctx context.Context, ownerID string) error {
			clears++
			return nil
		},
	}
	orders := &stubOrderRepository{
		insertFunc: func(ctx context.Context, order domain.Order) (domain.Order, error) {
			inserts++
			return order, nil
		},
	}
	capturer := &stubPaymentCapturer{
		captureFunc: func(ctx context.Context, method string, req payments.CaptureRequest) (payments.PaymentDetails, error) {
			return payments.PaymentDetails{}, payments.ErrDeclined
		},
	}

	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Baskets:  baskets,
		Orders:   orders,
		Payments: capturer,
	})

	_, err := service.Checkout(context.Background(), validCheckoutCommand())
	if !errors.Is(err, ErrCheckoutPaymentDeclined) {
		t.Fatalf("expected ErrCheckoutPaymentDeclined, got %v", err)
	}
	if inserts != 0 {
		t.Fatalf("expected no order to be created, got %d", inserts)
	}
	if clears != 0 {
		t.Fatalf("expected the basket to stay intact, got %d clears", clears)
	}
}

func TestCheckoutServicePublishFailureDoesNotFailCheckout(t *testing.T) {
	baskets := &stubBasketRepository{
		getFunc: func(ctx context.Context, ownerID string) (domain.Basket, error) {
			return domain.Basket{OwnerID: ownerID, Items: []domain.BasketItem{{ID: "item-1", UnitPrice: 100000, Quantity: 1}}}, nil
		},
	}
	publisher := &stubOrderPublisher{
		publishFunc: func(ctx context.Context, message OrderPlacedMessage) (string, error) {
			return "", errors.New("topic unavailable")
		},
	}

	service := newTestCheckoutService(t, CheckoutServiceDeps{
		Baskets:   baskets,
		Publisher: publisher,
	})

	result, err := service.Checkout(context.Background(), validCheckoutCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Order.Number == "" {
		t.Fatalf("expected the order to be placed despite the publish failure")
	}
}
