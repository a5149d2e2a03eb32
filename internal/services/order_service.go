package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist or belongs to another user.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the requested status transition is not allowed.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnavailable indicates the order service cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

// OrderServiceDeps wires the repository dependency for order operations.
type OrderServiceDeps struct {
	Repository repositories.OrderRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type orderService struct {
	repo   repositories.OrderRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errors.New("order service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &orderService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// GetOrder returns the order only when it belongs to the caller. Orders of
// other users are reported as not found rather than forbidden.
func (s *orderService) GetOrder(ctx context.Context, userID string, orderID string) (domain.Order, error) {
	if s == nil || s.repo == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(orderID)
	if uid == "" || id == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	if order.UserID != uid {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the caller's order history, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[domain.Order]{}, ErrOrderUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.Order]{}, ErrOrderInvalidInput
	}

	page, err := s.repo.ListByUser(ctx, uid, pager)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.translateRepoError(err)
	}
	return page, nil
}

// AdminGetOrder loads any order for back-office use.
func (s *orderService) AdminGetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if s == nil || s.repo == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	return order, nil
}

// AdminListOrders returns orders matching the back-office filter.
func (s *orderService) AdminListOrders(ctx context.Context, query AdminOrderListQuery) (domain.CursorPage[domain.Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[domain.Order]{}, ErrOrderUnavailable
	}
	if query.Status != "" && !domain.ValidOrderStatus(query.Status) {
		return domain.CursorPage[domain.Order]{}, ErrOrderInvalidInput
	}

	page, err := s.repo.List(ctx, repositories.OrderListFilter{
		Status:        query.Status,
		PaymentStatus: query.PaymentStatus,
		UserID:        strings.TrimSpace(query.UserID),
		PlacedAfter:   query.PlacedAfter,
		PlacedBefore:  query.PlacedBefore,
		Pagination:    query.Pagination,
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.translateRepoError(err)
	}
	return page, nil
}

// UpdateStatus moves the order along its lifecycle, rejecting transitions
// the lifecycle does not allow.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (domain.Order, error) {
	if s == nil || s.repo == nil {
		return domain.Order{}, ErrOrderUnavailable
	}
	id := strings.TrimSpace(cmd.OrderID)
	if id == "" || !domain.ValidOrderStatus(cmd.To) {
		return domain.Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	if !order.Status.CanTransition(cmd.To) {
		return domain.Order{}, ErrOrderConflict
	}

	updated, err := s.repo.UpdateStatus(ctx, id, domain.StatusChange{
		From:      order.Status,
		To:        cmd.To,
		ChangedBy: strings.TrimSpace(cmd.ChangedBy),
		ChangedAt: s.now(),
		Note:      strings.TrimSpace(cmd.Note),
	})
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.status.updated", map[string]any{
		"orderId": updated.ID,
		"from":    string(order.Status),
		"to":      string(cmd.To),
	})
	return updated, nil
}

// ApplyPaymentEvent records a payment state change reported by the provider.
// The order is located by ID when supplied, otherwise by payment reference.
func (s *orderService) ApplyPaymentEvent(ctx context.Context, cmd PaymentEventCommand) (domain.Order, error) {
	if s == nil || s.repo == nil {
		return domain.Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	reference := strings.TrimSpace(cmd.PaymentRef)
	if orderID == "" && reference == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	switch cmd.Status {
	case domain.PaymentStatusPending, domain.PaymentStatusPaid, domain.PaymentStatusFailed, domain.PaymentStatusRefunded:
	default:
		return domain.Order{}, ErrOrderInvalidInput
	}

	var order domain.Order
	var err error
	if orderID != "" {
		order, err = s.repo.FindByID(ctx, orderID)
	} else {
		order, err = s.repo.FindByPaymentRef(ctx, reference)
	}
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	updated, err := s.repo.UpdatePayment(ctx, order.ID, cmd.Status, reference)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	s.logger(ctx, "order.payment.updated", map[string]any{
		"orderId": updated.ID,
		"status":  string(cmd.Status),
	})
	return updated, nil
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderConflict
		case repoErr.IsUnavailable():
			return ErrOrderUnavailable
		}
		return ErrOrderUnavailable
	}
	if errors.Is(err, ErrOrderNotFound) {
		return ErrOrderNotFound
	}
	return ErrOrderUnavailable
}
