package auth

import (
	"context"
	"net/http"

	"github.com/aliuyar1234/circles/internal/apperrors"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// PrincipalContextKey is the context key for storing the principal
	PrincipalContextKey contextKey = "principal"

	// viaCookieContextKey marks requests authenticated by the session cookie
	viaCookieContextKey contextKey = "via_cookie"
)

// AuthMiddleware validates the session token and injects the principal into context.
// The token is read from the Authorization bearer header first, then the session cookie.
// An invalid cookie is cleared and the request continues unauthenticated.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, source := sessionToken(r)
			if source == sourceNone {
				next.ServeHTTP(w, r)
				return
			}
			viaCookie := source == sourceCookie

			claims, err := ValidateToken(token, secret)
			if err != nil {
				log.Debug().Err(err).Bool("via_cookie", viaCookie).Msg("Invalid session token")
				if viaCookie {
					expireSessionCookie(w)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithPrincipal(r.Context(), claims.Principal())
			ctx = context.WithValue(ctx, viaCookieContextKey, viaCookie)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth is middleware that requires authentication
// Returns 401 if no principal is present
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetPrincipal(r.Context()).IsZero() {
			apperrors.WriteUnauthorized(w, r, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// GetPrincipal retrieves the principal from the request context
// Returns the zero Principal if no user is authenticated
func GetPrincipal(ctx context.Context) Principal {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	if !ok {
		return Principal{}
	}
	return p
}

// AuthenticatedByCookie reports whether the request principal came from the session cookie.
func AuthenticatedByCookie(ctx context.Context) bool {
	viaCookie, _ := ctx.Value(viaCookieContextKey).(bool)
	return viaCookie
}
