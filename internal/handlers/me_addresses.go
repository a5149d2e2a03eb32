package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

const maxAddressBodySize = 16 * 1024

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addresses, err := h.users.ListAddresses(ctx, identity.UID)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}

	items := make([]addressPayload, 0, len(addresses))
	for _, addr := range addresses {
		items = append(items, buildAddressPayload(addr))
	}
	writeJSONResponse(w, http.StatusOK, addressListResponse{Addresses: items})
}

func (h *MeHandlers) addAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	cmd, ok := h.decodeAddressCommand(w, r, identity.UID, "")
	if !ok {
		return
	}

	address, err := h.users.AddAddress(ctx, cmd)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, addressResponse{Address: buildAddressPayload(address)})
}

func (h *MeHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressId"))
	cmd, ok := h.decodeAddressCommand(w, r, identity.UID, addressID)
	if !ok {
		return
	}

	address, err := h.users.UpdateAddress(ctx, cmd)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addressResponse{Address: buildAddressPayload(address)})
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressId"))
	if err := h.users.DeleteAddress(ctx, identity.UID, addressID); err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	addressID := strings.TrimSpace(chi.URLParam(r, "addressId"))
	address, err := h.users.SetDefaultAddress(ctx, identity.UID, addressID)
	if err != nil {
		h.writeUserError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, addressResponse{Address: buildAddressPayload(address)})
}

func (h *MeHandlers) decodeAddressCommand(w http.ResponseWriter, r *http.Request, ownerID, addressID string) (services.UpsertAddressCommand, bool) {
	ctx := r.Context()

	body, err := readLimitedBody(r, maxAddressBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return services.UpsertAddressCommand{}, false
	}

	var req addressRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return services.UpsertAddressCommand{}, false
	}

	return services.UpsertAddressCommand{
		OwnerID:   ownerID,
		AddressID: addressID,
		Label:     strings.TrimSpace(req.Label),
		Type:      domain.AddressType(strings.TrimSpace(req.Type)),
		Name:      strings.TrimSpace(req.Name),
		Line1:     strings.TrimSpace(req.Line1),
		Line2:     strings.TrimSpace(req.Line2),
		City:      strings.TrimSpace(req.City),
		County:    strings.TrimSpace(req.County),
		Postcode:  strings.TrimSpace(req.Postcode),
		Country:   strings.TrimSpace(req.Country),
		Phone:     strings.TrimSpace(req.Phone),
	}, true
}

type addressRequest struct {
	Label    string `json:"label"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	County   string `json:"county"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type addressResponse struct {
	Address addressPayload `json:"address"`
}

type addressListResponse struct {
	Addresses []addressPayload `json:"addresses"`
}

type addressPayload struct {
	ID        string `json:"id"`
	Label     string `json:"label,omitempty"`
	Type      string `json:"type"`
	Name      string `json:"name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2,omitempty"`
	City      string `json:"city"`
	County    string `json:"county,omitempty"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
	IsDefault bool   `json:"isDefault"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func buildAddressPayload(addr domain.Address) addressPayload {
	payload := addressPayload{
		ID:        addr.ID,
		Label:     addr.Label,
		Type:      string(addr.Type),
		Name:      addr.Name,
		Line1:     addr.Line1,
		Line2:     addr.Line2,
		City:      addr.City,
		County:    addr.County,
		Postcode:  addr.Postcode,
		Country:   addr.Country,
		Phone:     addr.Phone,
		IsDefault: addr.IsDefault,
	}
	if !addr.CreatedAt.IsZero() {
		payload.CreatedAt = addr.CreatedAt.Format(timeFormat)
	}
	if !addr.UpdatedAt.IsZero() {
		payload.UpdatedAt = addr.UpdatedAt.Format(timeFormat)
	}
	return payload
}
