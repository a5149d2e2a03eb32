package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	domain "github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/repositories"
)

const maxVATRateBps = 10000

// ErrSettingsInvalidInput indicates the supplied configuration is invalid.
var ErrSettingsInvalidInput = errors.New("settings service: invalid input")

// ErrSettingsUnavailable indicates the settings service cannot fulfil the request.
var ErrSettingsUnavailable = errors.New("settings service: unavailable")

// SettingsServiceDeps wires the repository dependency for settings operations.
type SettingsServiceDeps struct {
	Repository repositories.SettingsRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type settingsService struct {
	repo   repositories.SettingsRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewSettingsService constructs a SettingsService enforcing dependency validation.
func NewSettingsService(deps SettingsServiceDeps) (SettingsService, error) {
	if deps.Repository == nil {
		return nil, errors.New("settings service: repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &settingsService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// GetDeliverySettings returns the current tax and delivery configuration.
func (s *settingsService) GetDeliverySettings(ctx context.Context) (domain.DeliverySettings, error) {
	if s == nil || s.repo == nil {
		return domain.DeliverySettings{}, ErrSettingsUnavailable
	}
	settings, err := s.repo.Get(ctx)
	if err != nil {
		return domain.DeliverySettings{}, ErrSettingsUnavailable
	}
	return settings, nil
}

// UpdateDeliverySettings validates and replaces the configuration. Tiers are
// stored sorted by descending threshold with no duplicates.
func (s *settingsService) UpdateDeliverySettings(ctx context.Context, cmd UpdateDeliverySettingsCommand) (domain.DeliverySettings, error) {
	if s == nil || s.repo == nil {
		return domain.DeliverySettings{}, ErrSettingsUnavailable
	}

	validationErr := &ValidationError{}
	if cmd.VATRateBps < 0 || cmd.VATRateBps > maxVATRateBps {
		validationErr.Add("vatRateBps", "vat rate must be between 0 and 10000 basis points")
	}
	if len(cmd.ShippingTiers) == 0 {
		validationErr.Add("shippingTiers", "at least one shipping tier is required")
	}

	tiers := make([]domain.ShippingTier, len(cmd.ShippingTiers))
	copy(tiers, cmd.ShippingTiers)
	sort.Slice(tiers, func(i, j int) bool {
		return tiers[i].Threshold > tiers[j].Threshold
	})
	for i, tier := range tiers {
		if tier.Threshold.IsNegative() {
			validationErr.Add("shippingTiers", "tier thresholds must not be negative")
			break
		}
		if tier.Cost.IsNegative() {
			validationErr.Add("shippingTiers", "tier costs must not be negative")
			break
		}
		if i > 0 && tiers[i-1].Threshold == tier.Threshold {
			validationErr.Add("shippingTiers", "tier thresholds must be distinct")
			break
		}
	}
	if len(tiers) > 0 && tiers[len(tiers)-1].Threshold != 0 {
		validationErr.Add("shippingTiers", "a tier with threshold zero is required")
	}
	if validationErr.HasViolations() {
		return domain.DeliverySettings{}, validationErr
	}

	saved, err := s.repo.Save(ctx, domain.DeliverySettings{
		VATRateBps:    cmd.VATRateBps,
		ShippingTiers: tiers,
		UpdatedAt:     s.now(),
		UpdatedBy:     strings.TrimSpace(cmd.UpdatedBy),
	})
	if err != nil {
		return domain.DeliverySettings{}, ErrSettingsUnavailable
	}

	s.logger(ctx, "settings.delivery.updated", map[string]any{
		"vatRateBps": saved.VATRateBps,
		"tierCount":  len(saved.ShippingTiers),
		"updatedBy":  saved.UpdatedBy,
	})
	return saved, nil
}
