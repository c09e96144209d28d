package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if status := response["status"]; status != "ready" {
		t.Errorf("expected status=ready, got %v", status)
	}
	checks, ok := response["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks object, got %v", response["checks"])
	}
	dbCheck, ok := checks["database"].(map[string]any)
	if !ok {
		t.Fatalf("expected database check, got %v", checks["database"])
	}
	if dbStatus := dbCheck["status"]; dbStatus != "ok" {
		t.Errorf("expected database status=ok, got %v", dbStatus)
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	server := NewHTTPServer(newTestService(fs), "*")

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ok := response["ok"]; ok != false {
		t.Errorf("expected ok=false, got %v", ok)
	}
	if status := response["status"]; status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
	checks, ok := response["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected checks object, got %v", response["checks"])
	}
	dbCheck, ok := checks["database"].(map[string]any)
	if !ok {
		t.Fatalf("expected database check, got %v", checks["database"])
	}
	if dbError := dbCheck["error"]; dbError != "connection refused" {
		t.Errorf("expected database error='connection refused', got %v", dbError)
	}
}

func TestHealthEndpoint_OptionsRequest(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for OPTIONS, got %d", rr.Code)
	}
}

func TestHealthEndpoint_CORSHeaders(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin=*, got %v", origin)
	}
	if cache := rr.Header().Get("Cache-Control"); cache != "no-store" {
		t.Errorf("expected Cache-Control=no-store, got %v", cache)
	}
}

func TestPingMethod(t *testing.T) {
	tests := []struct {
		name      string
		pingError error
		wantError bool
	}{
		{"healthy database", nil, false},
		{"unhealthy database", errors.New("connection failed"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeStore{
				pingFn: func(context.Context) error { return tt.pingError },
			}
			svc := newTestService(fs)

			err := svc.Ping(context.Background())
			if (err != nil) != tt.wantError {
				t.Errorf("Ping() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
