package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

// DeliveryHandlers serves the storefront's delivery pricing tiers so the
// configurator can show shipping costs before checkout.
type DeliveryHandlers struct {
	settings services.SettingsService
}

// NewDeliveryHandlers constructs handlers for the public delivery surface.
func NewDeliveryHandlers(settings services.SettingsService) *DeliveryHandlers {
	return &DeliveryHandlers{settings: settings}
}

// Routes wires the public delivery endpoint onto the provided router.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/delivery-options", h.getDeliveryOptions)
}

func (h *DeliveryHandlers) getDeliveryOptions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.GetDeliverySettings(ctx)
	if err != nil {
		if errors.Is(err, services.ErrSettingsUnavailable) {
			httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to serve delivery options", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, buildDeliveryOptionsResponse(settings))
}

type deliveryOptionsResponse struct {
	VATRateBps int64                   `json:"vatRateBps"`
	Options    []deliveryOptionPayload `json:"options"`
}

type deliveryOptionPayload struct {
	Threshold        int64  `json:"threshold"`
	ThresholdDisplay string `json:"thresholdDisplay"`
	Cost             int64  `json:"cost"`
	CostDisplay      string `json:"costDisplay"`
}

func buildDeliveryOptionsResponse(settings domain.DeliverySettings) deliveryOptionsResponse {
	resp := deliveryOptionsResponse{
		VATRateBps: settings.VATRateBps,
		Options:    make([]deliveryOptionPayload, 0, len(settings.ShippingTiers)),
	}
	for _, tier := range settings.ShippingTiers {
		resp.Options = append(resp.Options, deliveryOptionPayload{
			Threshold:        tier.Threshold.Pence(),
			ThresholdDisplay: tier.Threshold.String(),
			Cost:             tier.Cost.Pence(),
			CostDisplay:      tier.Cost.String(),
		})
	}
	return resp
}
