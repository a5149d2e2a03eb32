package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRouterUnknownRouteReturnsJSONError(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected a JSON error body: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found, got %v", body["error"])
	}
}

func TestRouterUnmountedGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/basket/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestRouterHealthz(t *testing.T) {
	started := time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{Version: "1.4.0", StartedAt: started}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body["status"])
	}
	if body["version"] != "1.4.0" {
		t.Fatalf("expected the build version, got %v", body["version"])
	}
	if body["uptime"] != "30m0s" {
		t.Fatalf("expected a 30 minute uptime, got %v", body["uptime"])
	}
}

func TestRouterReadyzReportsFailingCheck(t *testing.T) {
	health := NewHealthHandlers(
		WithHealthCheck("firestore", func(ctx context.Context) error { return nil }),
		WithHealthCheck("pubsub", func(ctx context.Context) error { return errors.New("broker down") }),
	)
	router := NewRouter(WithHealthHandlers(health))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "unavailable" {
		t.Fatalf("expected unavailable status, got %q", body.Status)
	}
	if body.Checks["pubsub"]["status"] != "unavailable" {
		t.Fatalf("expected the failing check to be reported, got %v", body.Checks["pubsub"])
	}
	if body.Checks["firestore"]["status"] != "ok" {
		t.Fatalf("expected the healthy check to stay ok, got %v", body.Checks["firestore"])
	}
}
