package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vietddude/ecosetu/internal/core/domain"
)

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	// TrustHeaders accepts X-User-ID and X-User-Role when no token is sent.
	// The admin role is never taken from headers.
	TrustHeaders bool
}

// Claims are the token claims issued by the marketplace login service.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator turns request credentials into a domain.Caller.
type Authenticator struct {
	secret       []byte
	issuer       string
	trustHeaders bool
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	return &Authenticator{
		secret:       []byte(cfg.JWTSecret),
		issuer:       cfg.Issuer,
		trustHeaders: cfg.TrustHeaders,
	}
}

// IssueToken signs an HS256 token for caller. Used by the seed tool and tests.
func (a *Authenticator) IssueToken(caller domain.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(caller.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate resolves the caller of r.
func (a *Authenticator) Authenticate(r *http.Request) (domain.Caller, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if a.trustHeaders && r.Header.Get("X-User-ID") != "" {
			return domain.Caller{
				ID:   r.Header.Get("X-User-ID"),
				Role: headerRole(r.Header.Get("X-User-Role")),
			}, nil
		}
		return domain.Caller{}, fmt.Errorf("missing bearer token: %w", ErrUnauthorized)
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return domain.Caller{}, fmt.Errorf("malformed authorization header: %w", ErrUnauthorized)
	}
	if len(a.secret) == 0 {
		return domain.Caller{}, fmt.Errorf("token authentication is not configured: %w", ErrUnauthorized)
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("invalid token: %v: %w", err, ErrUnauthorized)
	}
	if claims.Subject == "" {
		return domain.Caller{}, fmt.Errorf("token has no subject: %w", ErrUnauthorized)
	}
	return domain.Caller{ID: claims.Subject, Role: domain.Role(claims.Role)}, nil
}

// headerRole maps an X-User-Role value to a party role. Admin is only ever
// granted through a signed token.
func headerRole(v string) domain.Role {
	switch r := domain.Role(strings.ToLower(strings.TrimSpace(v))); r {
	case domain.RoleBuyer, domain.RoleSeller:
		return r
	default:
		return ""
	}
}

// Middleware rejects unauthenticated requests and stores the caller in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.Authenticate(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerFrom returns the authenticated caller of a request context.
func CallerFrom(ctx context.Context) (domain.Caller, bool) {
	c, ok := ctx.Value(callerKey).(domain.Caller)
	return c, ok
}
