// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const userKey ctxKey = "user"

// SessionResolver resolves a bearer token to the username it authenticates
// as. Resolution fails for missing, unknown and expired tokens alike.
type SessionResolver interface {
	Resolve(token string) (string, error)
}

// BearerAuth is a middleware that enforces bearer-token authentication.
//
// It reads the Authorization header, strips the "Bearer " prefix and asks
// the resolver for the owning identity. On success the username is stored
// in the request context for downstream handlers; otherwise the request is
// rejected with 401 without revealing why the token was refused.
func BearerAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			username, err := resolver.Resolve(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from the Authorization header. Returns an
// empty string if the header is absent or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return auth[len(prefix):]
}

// GetUserFromContext extracts the authenticated username from the request
// context. Returns an empty string if not found.
func GetUserFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
