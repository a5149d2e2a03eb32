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

// MeHandlers exposes the authenticated caller's profile and addresses.
type MeHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

const maxProfileBodySize = 16 * 1024

// NewMeHandlers constructs handlers enforcing Firebase authentication before invoking the user service.
func NewMeHandlers(authn *auth.Authenticator, users services.UserService) *MeHandlers {
	return &MeHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
	r.Put("/", h.upsertProfile)
	r.Get("/addresses", h.listAddresses)
	r.Post("/addresses", h.addAddress)
	r.Put("/addresses/{addressId}", h.updateAddress)
	r.Delete("/addresses/{addressId}", h.deleteAddress)
	r.Post("/addresses/{addressId}/default", h.setDefaultAddress)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	account, err := h.users.GetProfile(ctx, identity.UID)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(account)})
}

func (h *MeHandlers) upsertProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProfileBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req profileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.UpsertProfileCommand{
		UserID:      identity.UID,
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Phone:       strings.TrimSpace(req.Phone),
	}
	if req.Preferences != nil {
		cmd.Preferences = domain.NotificationPreferences{
			OrderUpdates: req.Preferences.OrderUpdates,
			Marketing:    req.Preferences.Marketing,
		}
	}
	if cmd.Email == "" && identity.Email != "" {
		cmd.Email = identity.Email
	}

	account, err := h.users.UpsertProfile(ctx, cmd)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, profileResponse{Profile: buildProfilePayload(account)})
}

func (h *MeHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func (h *MeHandlers) writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserConflict):
		httpx.WriteError(ctx, w, httpx.NewError("user_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to serve profile request", http.StatusInternalServerError))
	}
}

type profileRequest struct {
	Email       string              `json:"email"`
	DisplayName string              `json:"displayName"`
	Phone       string              `json:"phone"`
	Preferences *preferencesPayload `json:"preferences"`
}

type profileResponse struct {
	Profile profilePayload `json:"profile"`
}

type profilePayload struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	DisplayName string             `json:"displayName,omitempty"`
	Phone       string             `json:"phone,omitempty"`
	Role        string             `json:"role"`
	Preferences preferencesPayload `json:"preferences"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	UpdatedAt   string             `json:"updatedAt,omitempty"`
}

type preferencesPayload struct {
	OrderUpdates bool `json:"orderUpdates"`
	Marketing    bool `json:"marketing"`
}

func buildProfilePayload(account domain.UserAccount) profilePayload {
	payload := profilePayload{
		ID:          account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
		Phone:       account.Phone,
		Role:        string(account.Role),
		Preferences: preferencesPayload{
			OrderUpdates: account.Preferences.OrderUpdates,
			Marketing:    account.Preferences.Marketing,
		},
	}
	if !account.CreatedAt.IsZero() {
		payload.CreatedAt = account.CreatedAt.Format(timeFormat)
	}
	if !account.UpdatedAt.IsZero() {
		payload.UpdatedAt = account.UpdatedAt.Format(timeFormat)
	}
	return payload
}
