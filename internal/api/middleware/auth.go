package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mcoot/holdem-lobby/internal/api/apierr"
	"github.com/mcoot/holdem-lobby/internal/model"
	"github.com/mcoot/holdem-lobby/internal/services/auth"
)

type contextKey string

const (
	identityContextKey contextKey = "identity"
	tokenContextKey    contextKey = "token"
)

// TokenResolver is the part of the auth service the middleware needs
type TokenResolver interface {
	ResolveIdentity(token string) (model.Identity, error)
}

var _ TokenResolver = (*auth.Service)(nil)

// Auth creates authentication middleware. Every request must carry a token
// that resolves to an identity.
func Auth(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				apierr.WriteError(w, apierr.NewUnauthorizedError())
				return
			}

			identity, err := resolver.ResolveIdentity(token)
			if err != nil {
				apierr.WriteError(w, err)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, identityContextKey, identity)
			ctx = context.WithValue(ctx, tokenContextKey, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractToken pulls the bearer token from the request. Browsers cannot
// set headers on WebSocket or EventSource requests, so a token query
// parameter and the session cookie are accepted too.
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	cookie, err := r.Cookie("session")
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetIdentity returns the authenticated identity from the request context
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	return identity, ok
}

// GetToken returns the token the request authenticated with
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// MustGetIdentity returns the authenticated identity or panics
func MustGetIdentity(ctx context.Context) model.Identity {
	identity, ok := GetIdentity(ctx)
	if !ok {
		panic("no identity in context - auth middleware not applied?")
	}
	return identity
}
