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

const maxSettingsBodySize = 16 * 1024

// AdminSettingsHandlers exposes the delivery and tax configuration endpoints.
type AdminSettingsHandlers struct {
	authn    *auth.Authenticator
	settings services.SettingsService
}

// NewAdminSettingsHandlers constructs admin settings handlers.
func NewAdminSettingsHandlers(authn *auth.Authenticator, settings services.SettingsService) *AdminSettingsHandlers {
	return &AdminSettingsHandlers{authn: authn, settings: settings}
}

// Routes registers admin settings endpoints.
func (h *AdminSettingsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireStaff())
	}
	r.Route("/settings", func(rt chi.Router) {
		rt.Get("/delivery", h.getDeliverySettings)
		rt.Put("/delivery", h.updateDeliverySettings)
	})
}

func (h *AdminSettingsHandlers) getDeliverySettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	settings, err := h.settings.GetDeliverySettings(ctx)
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDeliverySettingsPayload(settings))
}

func (h *AdminSettingsHandlers) updateDeliverySettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.settings == nil {
		httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if !identity.HasAnyRole(auth.RoleAdmin, auth.RoleSuperAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "settings changes require admin access", http.StatusForbidden))
		return
	}

	body, err := readLimitedBody(r, maxSettingsBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req deliverySettingsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.UpdateDeliverySettingsCommand{
		VATRateBps: req.VATRateBps,
		UpdatedBy:  identity.UID,
	}
	for _, tier := range req.ShippingTiers {
		cmd.ShippingTiers = append(cmd.ShippingTiers, domain.ShippingTier{
			Threshold: domain.Money(tier.Threshold),
			Cost:      domain.Money(tier.Cost),
		})
	}

	settings, err := h.settings.UpdateDeliverySettings(ctx, cmd)
	if err != nil {
		h.writeSettingsError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildDeliverySettingsPayload(settings))
}

func (h *AdminSettingsHandlers) writeSettingsError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrSettingsInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSettingsUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("settings_service_unavailable", "settings service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("settings_error", "failed to serve settings request", http.StatusInternalServerError))
	}
}

type deliverySettingsRequest struct {
	VATRateBps    int64                `json:"vatRateBps"`
	ShippingTiers []shippingTierParams `json:"shippingTiers"`
}

type shippingTierParams struct {
	Threshold int64 `json:"threshold"`
	Cost      int64 `json:"cost"`
}

type deliverySettingsPayload struct {
	VATRateBps    int64                `json:"vatRateBps"`
	ShippingTiers []shippingTierParams `json:"shippingTiers"`
	UpdatedAt     string               `json:"updatedAt,omitempty"`
	UpdatedBy     string               `json:"updatedBy,omitempty"`
}

func buildDeliverySettingsPayload(settings domain.DeliverySettings) deliverySettingsPayload {
	payload := deliverySettingsPayload{
		VATRateBps: settings.VATRateBps,
		UpdatedBy:  settings.UpdatedBy,
	}
	for _, tier := range settings.ShippingTiers {
		payload.ShippingTiers = append(payload.ShippingTiers, shippingTierParams{
			Threshold: tier.Threshold.Pence(),
			Cost:      tier.Cost.Pence(),
		})
	}
	if !settings.UpdatedAt.IsZero() {
		payload.UpdatedAt = settings.UpdatedAt.Format(timeFormat)
	}
	return payload
}
