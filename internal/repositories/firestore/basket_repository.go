package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/timberline/api/internal/domain"
	pfirestore "github.com/timberline/api/internal/platform/firestore"
	"github.com/timberline/api/internal/repositories"
)

const basketCollection = "baskets"

type basketItemDocument struct {
	ID            string         `firestore:"id"`
	Category      string         `firestore:"category"`
	Description   string         `firestore:"description,omitempty"`
	Configuration map[string]any `firestore:"configuration"`
	Fingerprint   string         `firestore:"fingerprint"`
	UnitPrice     int64          `firestore:"unitPrice"`
	Quantity      int64          `firestore:"quantity"`
	AddedAt       time.Time      `firestore:"addedAt"`
	UpdatedAt     time.Time      `firestore:"updatedAt"`
}

type basketDocument struct {
	Items     []basketItemDocument `firestore:"items"`
	ItemCount int                  `firestore:"itemCount"`
	CreatedAt time.Time            `firestore:"createdAt"`
	UpdatedAt time.Time            `firestore:"updatedAt"`
}

// BasketRepository persists one basket document per customer, keyed by the
// owner's user ID.
type BasketRepository struct {
	base *pfirestore.BaseRepository[basketDocument]
}

// NewBasketRepository constructs a Firestore-backed basket repository.
func NewBasketRepository(provider *pfirestore.Provider) (*BasketRepository, error) {
	if provider == nil {
		return nil, errors.New("basket repository requires firestore provider")
	}
	return &BasketRepository{
		base: pfirestore.NewBaseRepository[basketDocument](provider, basketCollection),
	}, nil
}

// Get loads the basket for the owner. A missing document is reported through
// the standard not-found categorisation.
func (r *BasketRepository) Get(ctx context.Context, ownerID string) (domain.Basket, error) {
	if r == nil || r.base == nil {
		return domain.Basket{}, errors.New("basket repository not initialised")
	}
	uid, err := requireID("basket", ownerID)
	if err != nil {
		return domain.Basket{}, err
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Basket{}, err
	}
	return basketFromDocument(uid, doc.Data, doc.UpdateTime), nil
}

// Save writes the full basket document.
func (r *BasketRepository) Save(ctx context.Context, basket domain.Basket) (domain.Basket, error) {
	if r == nil || r.base == nil {
		return domain.Basket{}, errors.New("basket repository not initialised")
	}
	uid, err := requireID("basket", basket.OwnerID)
	if err != nil {
		return domain.Basket{}, err
	}

	now := time.Now().UTC()
	createdAt := basket.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}

	doc := basketDocument{
		Items:     make([]basketItemDocument, 0, len(basket.Items)),
		ItemCount: len(basket.Items),
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	for _, item := range basket.Items {
		doc.Items = append(doc.Items, basketItemDocument{
			ID:            item.ID,
			Category:      string(item.Category),
			Description:   strings.TrimSpace(item.Description),
			Configuration: map[string]any(item.Configuration),
			Fingerprint:   item.Fingerprint,
			UnitPrice:     item.UnitPrice.Pence(),
			Quantity:      item.Quantity,
			AddedAt:       item.AddedAt.UTC(),
			UpdatedAt:     item.UpdatedAt.UTC(),
		})
	}

	result, err := r.base.Set(ctx, uid, doc)
	if err != nil {
		return domain.Basket{}, err
	}
	return basketFromDocument(uid, doc, result.UpdateTime), nil
}

// Clear deletes the basket document. Deleting a missing basket is not an error.
func (r *BasketRepository) Clear(ctx context.Context, ownerID string) error {
	if r == nil || r.base == nil {
		return errors.New("basket repository not initialised")
	}
	uid, err := requireID("basket", ownerID)
	if err != nil {
		return err
	}
	if err := r.base.Delete(ctx, uid); err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
		return err
	}
	return nil
}

func basketFromDocument(ownerID string, doc basketDocument, updateTime time.Time) domain.Basket {
	basket := domain.Basket{
		OwnerID:   ownerID,
		Items:     make([]domain.BasketItem, 0, len(doc.Items)),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if !updateTime.IsZero() {
		basket.UpdatedAt = updateTime
	}
	for _, item := range doc.Items {
		basket.Items = append(basket.Items, domain.BasketItem{
			ID:            item.ID,
			Category:      domain.ProductCategory(item.Category),
			Description:   item.Description,
			Configuration: domain.Configuration(item.Configuration),
			Fingerprint:   item.Fingerprint,
			UnitPrice:     domain.Money(item.UnitPrice),
			Quantity:      item.Quantity,
			AddedAt:       item.AddedAt,
			UpdatedAt:     item.UpdatedAt,
		})
	}
	return basket
}

var _ repositories.BasketRepository = (*BasketRepository)(nil)
