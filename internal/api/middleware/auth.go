package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rensmac/sparq-chat/internal/api/response"
	"github.com/rensmac/sparq-chat/internal/chat"
	"github.com/rensmac/sparq-chat/internal/config"
	"github.com/rensmac/sparq-chat/internal/security"
)

type contextKey string

const (
	UserIDKey   contextKey = "userID"
	UsernameKey contextKey = "username"
	VerifiedKey contextKey = "verified"
	IdentityKey contextKey = "identity"
)

// GuestCookie carries the anonymous visitor token for the lifetime of
// their browser session.
const GuestCookie = "sparq_guest"

// AuthMiddleware handles JWT authentication and identity resolution
type AuthMiddleware struct {
	jwtManager *security.JWTManager
	quota      config.QuotaConfig
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager, quota config.QuotaConfig) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager, quota: quota}
}

func (m *AuthMiddleware) claimsFromHeader(r *http.Request) (*security.Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, nil
	}

	return m.jwtManager.ValidateAccessToken(parts[1])
}

// Authenticate requires a valid JWT token
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFromHeader(r)
		if err != nil {
			response.Unauthorized(w, "invalid or expired token: "+err.Error())
			return
		}
		if claims == nil {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		ctx := withClaims(r.Context(), claims)
		ctx = context.WithValue(ctx, IdentityKey,
			chat.UserIdentity(claims.UserID, m.ceilingFor(claims.Verified)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identify resolves the caller to a turn identity without requiring an
// account: a valid bearer token yields the registered identity, anyone
// else gets a guest cookie and an address-keyed quota. An invalid token
// is rejected rather than silently downgraded to guest.
func (m *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.claimsFromHeader(r)
		if err != nil {
			response.Unauthorized(w, "invalid or expired token: "+err.Error())
			return
		}

		ctx := r.Context()
		var id chat.Identity
		if claims != nil {
			ctx = withClaims(ctx, claims)
			id = chat.UserIdentity(claims.UserID, m.ceilingFor(claims.Verified))
		} else {
			token := guestToken(w, r)
			id = chat.GuestIdentity(token, clientAddr(r), m.quota.GuestDaily)
		}

		ctx = context.WithValue(ctx, IdentityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) ceilingFor(verified bool) int {
	if verified {
		return m.quota.VerifiedDaily
	}
	return m.quota.UnverifiedDaily
}

func withClaims(ctx context.Context, claims *security.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UsernameKey, claims.Username)
	ctx = context.WithValue(ctx, VerifiedKey, claims.Verified)
	return ctx
}

// guestToken returns the visitor's existing guest token or mints one and
// sets the cookie.
func guestToken(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(GuestCookie); err == nil && c.Value != "" {
		return c.Value
	}

	token := chat.NewGuestToken()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// clientAddr returns the caller's network address without the port. The
// RealIP middleware has already resolved proxy headers upstream.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// GetUserID gets the user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetUsername gets the username from context
func GetUsername(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok
}

// GetVerified reports whether the authenticated user is verified
func GetVerified(ctx context.Context) bool {
	verified, _ := ctx.Value(VerifiedKey).(bool)
	return verified
}

// GetIdentity gets the resolved turn identity from context
func GetIdentity(ctx context.Context) (chat.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(chat.Identity)
	return id, ok
}
