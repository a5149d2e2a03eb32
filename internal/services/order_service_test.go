package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

func newTestOrderService(t *testing.T, repo repositories.OrderRepository, clock func() time.Time) OrderService {
	t.Helper()
	service, err := NewOrderService(OrderServiceDeps{Repository: repo, Clock: clock})
	if err != nil {
		t.Fatalf("unexpected error constructing order service: %v", err)
	}
	return service
}

func TestOrderServiceGetOrderOwnership(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, UserID: "user-2"}, nil
		},
	}
	service := newTestOrderService(t, repo, nil)

	_, err := service.GetOrder(context.Background(), "user-1", "order-1")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for another user's order, got %v", err)
	}

	order, err := service.GetOrder(context.Background(), "user-2", "order-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "order-1" {
		t.Fatalf("expected order-1, got %q", order.ID)
	}
}

func TestOrderServiceUpdateStatusValidTransition(t *testing.T) {
	now := time.Date(2025, 4, 3, 11, 0, 0, 0, time.UTC)
	var change domain.StatusChange

	repo := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusPending}, nil
		},
		updateStatusFunc: func(ctx context.Context, orderID string, c domain.StatusChange) (domain.Order, error) {
			change = c
			return domain.Order{ID: orderID, Status: c.To, StatusHistory: []domain.StatusChange{c}}, nil
		},
	}
	service := newTestOrderService(t, repo, func() time.Time { return now })

	updated, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID:   "order-1",
		To:        domain.OrderStatusConfirmed,
		ChangedBy: "staff-1",
		Note:      "deposit received",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %q", updated.Status)
	}
	if change.From != domain.OrderStatusPending || change.To != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected change %+v", change)
	}
	if change.ChangedBy != "staff-1" || change.ChangedAt != now {
		t.Fatalf("unexpected change attribution %+v", change)
	}
}

func TestOrderServiceUpdateStatusInvalidTransition(t *testing.T) {
	repo := &stubOrderRepository{
		findByIDFunc: func(ctx context.Context, orderID string) (domain.Order, error) {
			return domain.Order{ID: orderID, Status: domain.OrderStatusDispatched}, nil
		},
	}
	service := newTestOrderService(t, repo, nil)

	_, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		To:      domain.OrderStatusCancelled,
	})
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
}

func TestOrderServiceUpdateStatusUnknownStatus(t *testing.T) {
	service := newTestOrderService(t, &stubOrderRepository{}, nil)

	_, err := service.UpdateStatus(context.Background(), UpdateOrderStatusCommand{
		OrderID: "order-1",
		To:      domain.OrderStatus("lost_in_post"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderServiceAdminListOrdersRejectsUnknownStatus(t *testing.T) {
	service := newTestOrderService(t, &stubOrderRepository{}, nil)

	_, err := service.AdminListOrders(context.Background(), AdminOrderListQuery{
		Status: domain.OrderStatus("mislaid"),
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderServiceApplyPaymentEventByReference(t *testing.T) {
	var lookedUp string
	repo := &stubOrderRepository{
		findByPaymentRefFunc: func(ctx context.Context, reference string) (domain.Order, error) {
			lookedUp = reference
			return domain.Order{ID: "order-1", PaymentRef: reference}, nil
		},
		updatePaymentFunc: func(ctx context.Context, orderID string, status domain.PaymentStatus, reference string) (domain.Order, error) {
			return domain.Order{ID: orderID, PaymentStatus: status, PaymentRef: reference}, nil
		},
	}
	service := newTestOrderService(t, repo, nil)

	updated, err := service.ApplyPaymentEvent(context.Background(), PaymentEventCommand{
		PaymentRef: "pi_123",
		Status:     domain.PaymentStatusPaid,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lookedUp != "pi_123" {
		t.Fatalf("expected lookup by pi_123, got %q", lookedUp)
	}
	if updated.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %q", updated.PaymentStatus)
	}
}

func TestOrderServiceApplyPaymentEventRequiresIdentifier(t *testing.T) {
	service := newTestOrderService(t, &stubOrderRepository{}, nil)

	_, err := service.ApplyPaymentEvent(context.Background(), PaymentEventCommand{
		Status: domain.PaymentStatusPaid,
	})
	if !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput, got %v", err)
	}
}

func TestOrderServiceApplyPaymentEventUnknownOrder(t *testing.T) {
	repo := &stubOrderRepository{
		findByPaymentRefFunc: func(ctx context.Context, reference string) (domain.Order, error) {
			return domain.Order{}, &repositoryErrorStub{notFound: true}
		},
	}
	service := newTestOrderService(t, repo, nil)

	_, err := service.ApplyPaymentEvent(context.Background(), PaymentEventCommand{
		PaymentRef: "pi_missing",
		Status:     domain.PaymentStatusFailed,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderServiceListOrders(t *testing.T) {
	repo := &stubOrderRepository{
		listByUserFunc: func(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return domain.CursorPage[domain.Order]{
				Items:         []domain.Order{{ID: "order-2"}, {ID: "order-1"}},
				NextPageToken: "next",
			}, nil
		},
	}
	service := newTestOrderService(t, repo, nil)

	page, err := service.ListOrders(context.Background(), "user-1", domain.Pagination{PageSize: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 2 || page.NextPageToken != "next" {
		t.Fatalf("unexpected page %+v", page)
	}
}
