//go:build !integration

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMintAndParse(t *testing.T) {
	am := NewAuthManager("test-secret", time.Minute)

	tok, err := am.Mint("tenant-1", "tenant")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	claims, err := am.ParseFromRequest(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "tenant-1" || claims.Role != "tenant" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParse_RejectsForeignSecret(t *testing.T) {
	tok, _ := NewAuthManager("secret-a", time.Minute).Mint("tenant-1", "tenant")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	if _, err := NewAuthManager("secret-b", time.Minute).ParseFromRequest(r); err == nil {
		t.Fatal("expected a token signed with another secret to be rejected")
	}
}

func TestParse_RejectsExpired(t *testing.T) {
	am := NewAuthManager("test-secret", -time.Minute)
	tok, _ := am.Mint("tenant-1", "tenant")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	if _, err := am.ParseFromRequest(r); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}

func TestParse_MissingHeader(t *testing.T) {
	am := NewAuthManager("test-secret", time.Minute)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := am.ParseFromRequest(r); err == nil {
		t.Fatal("expected an error without an Authorization header")
	}
}

func TestRequireRole(t *testing.T) {
	am := NewAuthManager("test-secret", time.Minute)
	var gotSubject string
	handler := am.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = ClaimsFrom(r.Context()).Subject
		w.WriteHeader(http.StatusOK)
	}))

	// No token at all.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	// Tenant token on an admin route.
	tenantTok, _ := am.Mint("tenant-1", "tenant")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tenantTok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Errorf("tenant on admin route: expected 403, got %d", rec.Code)
	}

	// Admin token passes and the claims land in the context.
	adminTok, _ := am.Mint("admin-7", "admin")
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+adminTok)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", rec.Code)
	}
	if gotSubject != "admin-7" {
		t.Errorf("expected claims in context, got subject %q", gotSubject)
	}
}

func TestRequireRole_AdminPassesTenantCheck(t *testing.T) {
	am := NewAuthManager("test-secret", time.Minute)
	handler := am.RequireRole("tenant")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	adminTok, _ := am.Mint("admin-7", "admin")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+adminTok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Errorf("admin on tenant route: expected 200, got %d", rec.Code)
	}
}
