package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/adminauth"
)

// CookieName is the session cookie read when no bearer token is present.
const CookieName = "admin_token"

// SessionValidator is the part of [adminauth.Engine] the guards need.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (adminauth.Identity, error)
}

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by a guard.
func IdentityFromContext(ctx context.Context) (adminauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(adminauth.Identity)
	return id, ok
}

// WithIdentity stores id in ctx. The identity also becomes the audit actor.
func WithIdentity(ctx context.Context, id adminauth.Identity) context.Context {
	ctx = context.WithValue(ctx, identityContextKey{}, id)
	return adminauth.WithActor(ctx, id.Username)
}

// Guard rejects requests without a valid session token.
func Guard(validator SessionValidator) func(http.Handler) http.Handler {
	return guard(validator, nil)
}

func guard(validator SessionValidator, allow func(adminauth.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := TokenFromRequest(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				if adminauth.IsFatal(err) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if allow != nil && !allow(id) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		return bearerToken(h)
	}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
