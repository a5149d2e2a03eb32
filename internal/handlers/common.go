package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/timberline/api/internal/domain"
	"github.com/timberline/api/internal/platform/httpx"
	"github.com/timberline/api/internal/services"
)

const (
	defaultMaxBodySize = 16 * 1024
	timeFormat         = time.RFC3339
)

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeValidationError renders a services.ValidationError as a field-level 400 response.
func writeValidationError(ctx context.Context, w http.ResponseWriter, verr *services.ValidationError) {
	violations := make([]httpx.FieldViolation, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		violations = append(violations, httpx.FieldViolation{Field: v.Field, Message: v.Message})
	}
	httpErr := httpx.NewError("invalid_request", "request validation failed", http.StatusBadRequest).
		WithFieldViolations(violations)
	httpx.WriteError(ctx, w, httpErr)
}

func paginationQuery(r *http.Request) (domain.Pagination, error) {
	pager := domain.Pagination{}
	query := r.URL.Query()
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return domain.Pagination{}, errors.New("pageSize must be a positive integer")
		}
		pager.PageSize = size
	}
	pager.PageToken = strings.TrimSpace(query.Get("pageToken"))
	return pager, nil
}
