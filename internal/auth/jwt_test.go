package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestManager(expiry time.Duration) *JWTManager {
	cfg := DefaultJWTConfig("test-secret")
	cfg.Expiry = expiry
	return NewJWTManager(cfg)
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateToken("search-client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.ClientName != "search-client" {
		t.Errorf("client name = %q, want %q", claims.ClientName, "search-client")
	}
	if claims.Subject != "search-client" {
		t.Errorf("subject = %q, want %q", claims.Subject, "search-client")
	}
	if claims.Issuer != "lexrag" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	m := newTestManager(time.Hour)

	token, err := m.GenerateTokenWithExpiry("search-client", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateTokenWithExpiry failed: %v", err)
	}

	if _, err := m.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	m := newTestManager(time.Hour)
	other := NewJWTManager(DefaultJWTConfig("other-secret"))

	token, err := m.GenerateToken("search-client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTManager_RefreshExpiredToken(t *testing.T) {
	m := newTestManager(time.Hour)

	expired, err := m.GenerateTokenWithExpiry("search-client", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateTokenWithExpiry failed: %v", err)
	}

	refreshed, err := m.RefreshToken(expired)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}

	claims, err := m.ValidateToken(refreshed)
	if err != nil {
		t.Fatalf("refreshed token invalid: %v", err)
	}
	if claims.ClientName != "search-client" {
		t.Errorf("client name = %q", claims.ClientName)
	}
}

func TestJWTManager_RefreshRejectsTamperedToken(t *testing.T) {
	m := newTestManager(time.Hour)
	other := NewJWTManager(DefaultJWTConfig("other-secret"))

	foreign, err := other.GenerateToken("search-client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := m.RefreshToken(foreign); err == nil {
		t.Error("expected refresh of foreign-signed token to fail")
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	m := newTestManager(time.Hour)
	token, err := m.GenerateToken("search-client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	var gotClient string
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClientFromContext(r.Context())
		if !ok {
			t.Fatal("claims missing from context")
		}
		gotClient = claims.ClientName
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotClient != "search-client" {
		t.Errorf("client = %q", gotClient)
	}
}

func TestMiddleware_RejectsMissingAndMalformed(t *testing.T) {
	m := newTestManager(time.Hour)
	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))

	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/search", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestClientFromContext_Absent(t *testing.T) {
	if _, ok := ClientFromContext(context.Background()); ok {
		t.Error("expected no claims in empty context")
	}
}
