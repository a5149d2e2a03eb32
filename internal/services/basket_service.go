package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

const maxBasketLines = 50

// ErrBasketInvalidInput indicates the caller supplied invalid input.
var ErrBasketInvalidInput = errors.New("basket service: invalid input")

// ErrBasketNotFound indicates the requested basket line does not exist.
var ErrBasketNotFound = errors.New("basket service: not found")

// ErrBasketConflict indicates the basket could not be updated due to concurrent modification.
var ErrBasketConflict = errors.New("basket service: conflict")

// ErrBasketUnavailable indicates the basket service cannot fulfil the request.
var ErrBasketUnavailable = errors.New("basket service: unavailable")

type basketPricer interface {
	Quote(ctx context.Context, category domain.ProductCategory, cfg domain.Configuration) (domain.Quote, error)
	Totals(items []domain.BasketItem, settings domain.DeliverySettings) domain.BasketTotals
}

type deliverySettingsSource interface {
	GetDeliverySettings(ctx context.Context) (domain.DeliverySettings, error)
}

// BasketServiceDeps wires the repository, pricing, and settings dependencies.
type BasketServiceDeps struct {
	Repository  repositories.BasketRepository
	Pricer      basketPricer
	Settings    deliverySettingsSource
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type basketService struct {
	repo     repositories.BasketRepository
	pricer   basketPricer
	settings deliverySettingsSource
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewBasketService constructs a BasketService enforcing dependency validation.
func NewBasketService(deps BasketServiceDeps) (BasketService, error) {
	if deps.Repository == nil {
		return nil, errors.New("basket service: repository is required")
	}
	if deps.Pricer == nil {
		return nil, errors.New("basket service: pricer is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("basket service: settings source is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &basketService{
		repo:     deps.Repository,
		pricer:   deps.Pricer,
		settings: deps.Settings,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// GetBasket loads the caller's basket. A customer without a stored basket
// gets an empty one.
func (s *basketService) GetBasket(ctx context.Context, userID string) (BasketView, error) {
	if s == nil || s.repo == nil {
		return BasketView{}, ErrBasketUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return BasketView{}, ErrBasketInvalidInput
	}

	basket, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return BasketView{}, err
	}
	return s.view(ctx, basket)
}

// AddItem prices the configuration, freezes the unit price, and appends the
// line. Identical configurations merge into the existing line instead of
// duplicating it.
func (s *basketService) AddItem(ctx context.Context, cmd AddBasketItemCommand) (BasketView, error) {
	if s == nil || s.repo == nil {
		return BasketView{}, ErrBasketUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return BasketView{}, ErrBasketInvalidInput
	}
	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return BasketView{}, ErrBasketInvalidInput
	}
	if !domain.ValidCategory(cmd.Category) {
		return BasketView{}, ErrBasketInvalidInput
	}

	quote, err := s.pricer.Quote(ctx, cmd.Category, cmd.Configuration)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return BasketView{}, validationErr
		}
		if errors.Is(err, ErrPricingUnknownCategory) {
			return BasketView{}, ErrBasketInvalidInput
		}
		return BasketView{}, ErrBasketUnavailable
	}

	basket, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return BasketView{}, err
	}

	now := s.now()
	fingerprint := cmd.Configuration.Fingerprint()
	merged := false
	for i := range basket.Items {
		if basket.Items[i].Category == cmd.Category && basket.Items[i].Fingerprint == fingerprint {
			basket.Items[i].Quantity += quantity
			basket.Items[i].UpdatedAt = now
			merged = true
			break
		}
	}
	if !merged {
		if len(basket.Items) >= maxBasketLines {
			return BasketView{}, ErrBasketInvalidInput
		}
		basket.Items = append(basket.Items, domain.BasketItem{
			ID:            s.newID(),
			Category:      cmd.Category,
			Description:   quote.Description,
			Configuration: cmd.Configuration.Clone(),
			Fingerprint:   fingerprint,
			UnitPrice:     quote.UnitPrice,
			Quantity:      quantity,
			AddedAt:       now,
			UpdatedAt:     now,
		})
	}
	basket.UpdatedAt = now

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return BasketView{}, s.translateRepoError(err)
	}

	s.logger(ctx, "basket.item.added", map[string]any{
		"userId":   uid,
		"category": string(cmd.Category),
		"merged":   merged,
	})
	return s.view(ctx, saved)
}

// UpdateItemQuantity changes the quantity of an existing line, keeping the
// frozen unit price.
func (s *basketService) UpdateItemQuantity(ctx context.Context, cmd UpdateBasketItemCommand) (BasketView, error) {
	if s == nil || s.repo == nil {
		return BasketView{}, ErrBasketUnavailable
	}
	uid := strings.TrimSpace(cmd.UserID)
	itemID := strings.TrimSpace(cmd.ItemID)
	if uid == "" || itemID == "" || cmd.Quantity < 1 {
		return BasketView{}, ErrBasketInvalidInput
	}

	basket, err := s.repo.Get(ctx, uid)
	if err != nil {
		return BasketView{}, s.translateRepoError(err)
	}

	found := false
	now := s.now()
	for i := range basket.Items {
		if basket.Items[i].ID == itemID {
			basket.Items[i].Quantity = cmd.Quantity
			basket.Items[i].UpdatedAt = now
			found = true
			break
		}
	}
	if !found {
		return BasketView{}, ErrBasketNotFound
	}
	basket.UpdatedAt = now

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return BasketView{}, s.translateRepoError(err)
	}
	return s.view(ctx, saved)
}

// RemoveItem drops the line from the basket. Removing a line that is already
// gone is not an error, so retried deletes stay safe.
func (s *basketService) RemoveItem(ctx context.Context, userID string, itemID string) (BasketView, error) {
	if s == nil || s.repo == nil {
		return BasketView{}, ErrBasketUnavailable
	}
	uid := strings.TrimSpace(userID)
	id := strings.TrimSpace(itemID)
	if uid == "" || id == "" {
		return BasketView{}, ErrBasketInvalidInput
	}

	basket, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return BasketView{}, err
	}

	filtered := basket.Items[:0]
	removed := false
	for _, item := range basket.Items {
		if item.ID == id {
			removed = true
			continue
		}
		filtered = append(filtered, item)
	}
	if !removed {
		return s.view(ctx, basket)
	}
	basket.Items = filtered
	basket.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return BasketView{}, s.translateRepoError(err)
	}
	return s.view(ctx, saved)
}

// ClearBasket empties the caller's basket.
func (s *basketService) ClearBasket(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrBasketUnavailable
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrBasketInvalidInput
	}
	if err := s.repo.Clear(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *basketService) loadOrEmpty(ctx context.Context, userID string) (domain.Basket, error) {
	basket, err := s.repo.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			now := s.now()
			return domain.Basket{OwnerID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		return domain.Basket{}, s.translateRepoError(err)
	}
	return basket, nil
}

func (s *basketService) view(ctx context.Context, basket domain.Basket) (BasketView, error) {
	settings, err := s.settings.GetDeliverySettings(ctx)
	if err != nil {
		return BasketView{}, ErrBasketUnavailable
	}
	return BasketView{
		Basket: basket,
		Totals: s.pricer.Totals(basket.Items, settings),
	}, nil
}

func (s *basketService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrBasketNotFound
		case repoErr.IsConflict():
			return ErrBasketConflict
		case repoErr.IsUnavailable():
			return ErrBasketUnavailable
		}
		return ErrBasketUnavailable
	}
	return ErrBasketUnavailable
}
