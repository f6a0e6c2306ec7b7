package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/pulsar-relay/relay/internal/authz"
	"github.com/pulsar-relay/relay/internal/domain"
)

// contextKey is an unexported type used for context keys to avoid collisions.
type contextKey string

// UserKey is the context key for the authenticated *domain.User.
const UserKey contextKey = "user"

// WithUser returns a context carrying user, as set by AuthMiddleware.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser extracts the authenticated user from the request context. Returns
// nil if the request was never authenticated.
func GetUser(ctx context.Context) *domain.User {
	u, _ := ctx.Value(UserKey).(*domain.User)
	return u
}

// Error codes used within middleware responses.
const (
	errCodeUnauthorized = "unauthorized"
)

// AuthMiddleware verifies the bearer token on every protected request and
// attaches the resolved user to the request context.
type AuthMiddleware struct {
	authz *authz.Service
}

func NewAuthMiddleware(az *authz.Service) *AuthMiddleware {
	return &AuthMiddleware{authz: az}
}

// Authenticate requires a valid bearer token, taken from the
// `Authorization: Bearer <token>` header or, when that header is absent,
// from the `token` query parameter.
func (am *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "missing bearer token")
			return
		}

		user, err := am.authz.ResolveUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, authz.ErrForbidden) {
				writeError(w, http.StatusForbidden, "forbidden", "user is not active")
				return
			}
			writeError(w, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin is applied downstream of Authenticate; it rejects any caller
// that does not hold the admin permission.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil || !user.HasPermission(domain.PermAdmin) {
			writeError(w, http.StatusForbidden, "forbidden", "admin permission required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header, falling
// back to the `token` query parameter on any route when the header is
// absent (needed for the WS upgrade request, since browsers cannot set
// custom headers on a WebSocket handshake).
func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1], true
		}
		return "", false
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}
