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
	"github.com/timberline/api/internal/repositories"
	"github.com/timberline/api/internal/services"
)

const maxRoleUpdateBodySize = 64 * 1024

// AdminUserHandlers exposes back-office account management endpoints.
type AdminUserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewAdminUserHandlers constructs admin user handlers.
func NewAdminUserHandlers(authn *auth.Authenticator, users services.UserService) *AdminUserHandlers {
	return &AdminUserHandlers{authn: authn, users: users}
}

// Routes registers admin user endpoints.
func (h *AdminUserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireStaff())
	}
	r.Route("/users", func(rt chi.Router) {
		rt.Get("/", h.listUsers)
		rt.Post("/roles:batchUpdate", h.batchUpdateRoles)
		rt.Get("/{userId}", h.getUser)
		rt.Post("/{userId}:deactivate", h.deactivateUser)
	})
}

func (h *AdminUserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pager, err := paginationQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := repositories.UserListFilter{
		Role:       domain.UserRole(strings.TrimSpace(r.URL.Query().Get("role"))),
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: pager,
	}

	page, err := h.users.ListUsers(ctx, filter)
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}

	users := make([]adminUserPayload, 0, len(page.Items))
	for _, account := range page.Items {
		users = append(users, buildAdminUserPayload(account))
	}
	writeJSONResponse(w, http.StatusOK, adminUserListResponse{
		Users:         users,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminUserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "a user id is required", http.StatusBadRequest))
		return
	}

	account, err := h.users.GetProfile(ctx, userID)
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAdminUserPayload(account))
}

func (h *AdminUserHandlers) deactivateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if !identity.HasAnyRole(auth.RoleAdmin, auth.RoleSuperAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "account deactivation requires admin access", http.StatusForbidden))
		return
	}

	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "a user id is required", http.StatusBadRequest))
		return
	}

	account, err := h.users.DeactivateUser(ctx, services.DeactivateUserCommand{
		UserID:    userID,
		ChangedBy: identity.UID,
	})
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAdminUserPayload(account))
}

func (h *AdminUserHandlers) batchUpdateRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}
	if !identity.HasAnyRole(auth.RoleAdmin, auth.RoleSuperAdmin) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_role", "role administration requires admin access", http.StatusForbidden))
		return
	}

	body, err := readLimitedBody(r, maxRoleUpdateBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req batchRoleUpdateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.BatchUpdateRolesCommand{ChangedBy: identity.UID}
	for _, update := range req.Updates {
		cmd.Assignments = append(cmd.Assignments, services.RoleAssignment{
			UserID: strings.TrimSpace(update.UserID),
			Role:   domain.UserRole(strings.TrimSpace(update.Role)),
		})
	}

	accounts, err := h.users.BatchUpdateRoles(ctx, cmd)
	if err != nil {
		h.writeAdminUserError(ctx, w, err)
		return
	}

	users := make([]adminUserPayload, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, buildAdminUserPayload(account))
	}
	writeJSONResponse(w, http.StatusOK, adminUserListResponse{Users: users})
}

func (h *AdminUserHandlers) writeAdminUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(ctx, w, verr)
	case errors.Is(err, services.ErrUserProtectedAccount):
		httpx.WriteError(ctx, w, httpx.NewError("protected_account", "system accounts cannot be modified", http.StatusConflict))
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserConflict):
		httpx.WriteError(ctx, w, httpx.NewError("user_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to serve user request", http.StatusInternalServerError))
	}
}

type batchRoleUpdateRequest struct {
	Updates []roleUpdateRequest `json:"updates"`
}

type roleUpdateRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type adminUserListResponse struct {
	Users         []adminUserPayload `json:"users"`
	NextPageToken string             `json:"nextPageToken,omitempty"`
}

type adminUserPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Role          string `json:"role"`
	SystemAccount bool   `json:"systemAccount"`
	Disabled      bool   `json:"disabled"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
}

func buildAdminUserPayload(account domain.UserAccount) adminUserPayload {
	payload := adminUserPayload{
		ID:            account.ID,
		Email:         account.Email,
		DisplayName:   account.DisplayName,
		Phone:         account.Phone,
		Role:          string(account.Role),
		SystemAccount: account.SystemAccount,
		Disabled:      account.Disabled,
	}
	if !account.CreatedAt.IsZero() {
		payload.CreatedAt = account.CreatedAt.Format(timeFormat)
	}
	if !account.UpdatedAt.IsZero() {
		payload.UpdatedAt = account.UpdatedAt.Format(timeFormat)
	}
	return payload
}
