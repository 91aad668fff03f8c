package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/phishguard/phishguard/internal/domain/identity"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (identity.Identity, error)
}

// Authenticate resolves the optional Authorization header into an
// identity in the request context. A missing or invalid token leaves
// the request anonymous; scanning works without an account, so this
// middleware never rejects.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := identity.Identity{}

			auth := r.Header.Get("Authorization")
			if auth != "" {
				token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
				if token != "" {
					if parsed, err := verifier.Verify(token); err == nil {
						ident = parsed
					}
				}
			}

			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with the same error envelope
// the API handlers use. Mount after Authenticate on routes where
// history access is mandatory.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()).Anonymous() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{
					"code":    "UNAUTHORIZED",
					"message": "authentication required",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IdentityFromContext extracts the request identity; the zero value
// means anonymous.
func IdentityFromContext(ctx context.Context) identity.Identity {
	if ident, ok := ctx.Value(identityKey).(identity.Identity); ok {
		return ident
	}
	return identity.Identity{}
}
