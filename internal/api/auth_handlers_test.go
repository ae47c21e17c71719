package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/gridcast/gridcast/internal/auth"
	"github.com/gridcast/gridcast/internal/config"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:     "test-secret-key",
		AdminPassword: "hunter2",
		TokenDuration: time.Hour,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoginIssuesToken(t *testing.T) {
	cfg := testAuthConfig()
	handler := NewAuthHandler(cfg, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"hunter2"}`))
	rr := httptest.NewRecorder()

	handler.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp LoginResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}
	if resp.Role != auth.AdminRole {
		t.Errorf("expected role %q, got %q", auth.AdminRole, resp.Role)
	}

	role, err := auth.ValidateToken(resp.Token, cfg)
	if err != nil {
		t.Fatalf("issued token failed validation: %v", err)
	}
	if role != auth.AdminRole {
		t.Errorf("expected role %q, got %q", auth.AdminRole, role)
	}
}

func TestLoginAcceptsHashedCredential(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	cfg := testAuthConfig()
	cfg.AdminPassword = ""
	cfg.AdminPasswordHash = hash
	handler := NewAuthHandler(cfg, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"hunter2"}`))
	rr := httptest.NewRecorder()

	handler.Login(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	handler := NewAuthHandler(testAuthConfig(), testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"wrong"}`))
	rr := httptest.NewRecorder()

	handler.Login(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestLoginRejectsNonPost(t *testing.T) {
	handler := NewAuthHandler(testAuthConfig(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	rr := httptest.NewRecorder()

	handler.Login(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
