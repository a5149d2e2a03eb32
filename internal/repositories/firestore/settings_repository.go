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

const (
	settingsCollection = "settings"
	deliveryDocumentID = "delivery"
)

type shippingTierDocument struct {
	Threshold int64 `firestore:"threshold"`
	Cost      int64 `firestore:"cost"`
}

type deliverySettingsDocument struct {
	VATRateBps    int64                  `firestore:"vatRateBps"`
	ShippingTiers []shippingTierDocument `firestore:"shippingTiers"`
	UpdatedAt     time.Time              `firestore:"updatedAt"`
	UpdatedBy     string                 `firestore:"updatedBy,omitempty"`
}

// SettingsRepository stores the delivery and tax configuration in a single
// well-known document.
type SettingsRepository struct {
	base *pfirestore.BaseRepository[deliverySettingsDocument]
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	return &SettingsRepository{
		base: pfirestore.NewBaseRepository[deliverySettingsDocument](provider, settingsCollection),
	}, nil
}

// Get loads the stored settings, falling back to the defaults when no
// administrator has saved any yet.
func (r *SettingsRepository) Get(ctx context.Context) (domain.DeliverySettings, error) {
	if r == nil || r.base == nil {
		return domain.DeliverySettings{}, errors.New("settings repository not initialised")
	}

	doc, err := r.base.Get(ctx, deliveryDocumentID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.DefaultDeliverySettings(), nil
		}
		return domain.DeliverySettings{}, err
	}
	return settingsFromDocument(doc.Data), nil
}

// Save overwrites the settings document.
func (r *SettingsRepository) Save(ctx context.Context, settings domain.DeliverySettings) (domain.DeliverySettings, error) {
	if r == nil || r.base == nil {
		return domain.DeliverySettings{}, errors.New("settings repository not initialised")
	}

	doc := deliverySettingsDocument{
		VATRateBps:    settings.VATRateBps,
		ShippingTiers: make([]shippingTierDocument, 0, len(settings.ShippingTiers)),
		UpdatedAt:     time.Now().UTC(),
		UpdatedBy:     strings.TrimSpace(settings.UpdatedBy),
	}
	for _, tier := range settings.ShippingTiers {
		doc.ShippingTiers = append(doc.ShippingTiers, shippingTierDocument{
			Threshold: tier.Threshold.Pence(),
			Cost:      tier.Cost.Pence(),
		})
	}

	if _, err := r.base.Set(ctx, deliveryDocumentID, doc); err != nil {
		return domain.DeliverySettings{}, err
	}
	return settingsFromDocument(doc), nil
}

func settingsFromDocument(doc deliverySettingsDocument) domain.DeliverySettings {
	settings := domain.DeliverySettings{
		VATRateBps:    doc.VATRateBps,
		ShippingTiers: make([]domain.ShippingTier, 0, len(doc.ShippingTiers)),
		UpdatedAt:     doc.UpdatedAt,
		UpdatedBy:     doc.UpdatedBy,
	}
	for _, tier := range doc.ShippingTiers {
		settings.ShippingTiers = append(settings.ShippingTiers, domain.ShippingTier{
			Threshold: domain.Money(tier.Threshold),
			Cost:      domain.Money(tier.Cost),
		})
	}
	return settings
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)
