package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/phontary/Dienstato-sub003/internal/auth"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

type contextKey string

const userContextKey contextKey = "user"

// SessionTokenFromRequest extracts the session token from the Authorization
// header (Bearer scheme) or the session cookie.
func SessionTokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
	}
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth resolves the request's session token to a user and rejects
// unauthenticated requests. The user is stored in the request context.
func RequireAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authService.Authenticate(r.Context(), SessionTokenFromRequest(r))
			if err != nil {
				WriteError(w, http.StatusInternalServerError, ErrInternalError, "Failed to resolve session")
				return
			}
			if user == nil {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "Authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithUser returns a copy of ctx carrying the authenticated user.
func ContextWithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil outside RequireAuth.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}
