package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safetradehq/safetrade-backend/pkg/config"
	"github.com/safetradehq/safetrade-backend/pkg/security"
)

func TestAdminCapabilityAllowsMatchingSecret(t *testing.T) {
	hash, err := security.HashSecret("staff-secret", config.AdminConfig{})
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	mw := AdminCapability(config.AdminConfig{CapabilityHash: hash}, nil)

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/thing", nil)
	req.Header.Set(adminCapabilityHeader, "staff-secret")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected inner handler to run")
	}
}

func TestAdminCapabilityRejectsWrongSecret(t *testing.T) {
	hash, err := security.HashSecret("staff-secret", config.AdminConfig{})
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	mw := AdminCapability(config.AdminConfig{CapabilityHash: hash}, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/thing", nil)
	req.Header.Set(adminCapabilityHeader, "guess")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestAdminCapabilityClosedWhenUnconfigured(t *testing.T) {
	mw := AdminCapability(config.AdminConfig{}, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/admin/thing", nil)
	req.Header.Set(adminCapabilityHeader, "anything")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
