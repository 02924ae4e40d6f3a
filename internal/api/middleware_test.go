package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/ecosetu/internal/core/domain"
	"github.com/vietddude/ecosetu/internal/core/ledger"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(100)
	if limiter.Limiter("10.0.0.1") != limiter.Limiter("10.0.0.1") {
		t.Error("expected the same limiter for the same IP")
	}
	if limiter.Limiter("10.0.0.1") == limiter.Limiter("10.0.0.2") {
		t.Error("expected different limiters for different IPs")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(NewIPRateLimiter(5))(http.HandlerFunc(okHandler))

	var limited bool
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("expected rate limit to trigger")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.101:12345"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected other IP to pass, got %d", w.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "3.3.3.3:1", "3.3.3.3"},
		{"remote without port", nil, "3.3.3.3", "3.3.3.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRequestIDMiddleware_ReusesInbound(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != "abc-123" || w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("expected inbound id to be kept, got %q / %q", seen, w.Header().Get("X-Request-ID"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ledger.ValidationError{Field: "status", Reason: "bad"}, http.StatusBadRequest},
		{&requestError{err: errors.New("eof")}, http.StatusBadRequest},
		{errPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("x: %w", ErrUnauthorized), http.StatusUnauthorized},
		{fmt.Errorf("x: %w", ledger.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", ledger.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", ledger.ErrAlreadyExists), http.StatusConflict},
		{fmt.Errorf("x: %w", ledger.ErrInvalidTransition), http.StatusConflict},
		{fmt.Errorf("x: %w", ledger.ErrConflict), http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestAuthenticator(t *testing.T) {
	strict := NewAuthenticator(AuthConfig{JWTSecret: "k1", Issuer: "ecosetu"})
	other := NewAuthenticator(AuthConfig{JWTSecret: "k2", Issuer: "ecosetu"})
	wrongIssuer := NewAuthenticator(AuthConfig{JWTSecret: "k1", Issuer: "someone-else"})

	caller := domain.Caller{ID: "B1", Role: domain.RoleBuyer}
	good, _ := strict.IssueToken(caller, time.Minute)
	expired, _ := strict.IssueToken(caller, -time.Minute)
	forged, _ := other.IssueToken(caller, time.Minute)
	misissued, _ := wrongIssuer.IssueToken(caller, time.Minute)

	tests := []struct {
		name    string
		header  string
		userID  string
		wantErr bool
	}{
		{"valid", "Bearer " + good, "", false},
		{"expired", "Bearer " + expired, "", true},
		{"wrong key", "Bearer " + forged, "", true},
		{"wrong issuer", "Bearer " + misissued, "", true},
		{"not bearer", "Basic abc", "", true},
		{"missing", "", "", true},
		{"headers not trusted", "", "B1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}
			got, err := strict.Authenticate(req)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != caller {
				t.Errorf("expected %+v, got %+v", caller, got)
			}
		})
	}
}

func TestAuthenticator_TrustedHeaders(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{TrustHeaders: true})

	tests := []struct {
		name     string
		role     string
		wantRole domain.Role
	}{
		{"buyer", "buyer", domain.RoleBuyer},
		{"seller mixed case", " Seller ", domain.RoleSeller},
		{"admin ignored", "admin", ""},
		{"unknown ignored", "superuser", ""},
		{"no role", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-User-ID", "U1")
			req.Header.Set("X-User-Role", tt.role)
			got, err := auth.Authenticate(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != "U1" || got.Role != tt.wantRole {
				t.Errorf("expected U1/%q, got %+v", tt.wantRole, got)
			}
			if got.IsAdmin() {
				t.Error("headers must never grant admin")
			}
		})
	}
}
