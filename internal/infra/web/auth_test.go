//go:build !integration

package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthManager_MintAndParse(t *testing.T) {
	auth := NewAuthManager("test-secret", time.Minute)

	t.Run("should round-trip subject and role", func(t *testing.T) {
		tok, err := auth.Mint("billing-service", "service")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+tok)

		claims, err := auth.ParseFromRequest(r)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if claims.Subject != "billing-service" {
			t.Errorf("subject = %q, want billing-service", claims.Subject)
		}
		if claims.Role != "service" {
			t.Errorf("role = %q, want service", claims.Role)
		}
	})

	t.Run("should reject a missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if _, err := auth.ParseFromRequest(r); err == nil {
			t.Error("expected an error without a token")
		}
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		other := NewAuthManager("other-secret", time.Minute)
		tok, err := other.Mint("intruder", "admin")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		if _, err := auth.ParseFromRequest(r); err == nil {
			t.Error("expected an error for a foreign signature")
		}
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		short := NewAuthManager("test-secret", time.Nanosecond)
		tok, err := short.Mint("billing-service", "service")
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Bearer "+tok)
		if _, err := auth.ParseFromRequest(r); err == nil {
			t.Error("expected an error for an expired token")
		}
	})
}
