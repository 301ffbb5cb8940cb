package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"chatflow/internal/domain"
)

type contextKey string

const userContextKey contextKey = "currentUser"

// tokenCookie carries the credential for browser clients.
const tokenCookie = "token"

// Resolver turns a credential into the user it was issued for.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

// WithUser returns a new context carrying the current user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser extracts the current user from context, if any.
func CurrentUser(r *http.Request) *domain.User {
	if v := r.Context().Value(userContextKey); v != nil {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

func requestToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	if c, err := r.Cookie(tokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// AuthMiddleware resolves the Bearer token (or token cookie) and attaches
// the user to the context.
func AuthMiddleware(auth Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Resolve(r.Context(), requestToken(r))
			if err != nil {
				zerolog.Ctx(r.Context()).Debug().Err(err).Msg("request rejected")
				writeError(w, r, err)
				return
			}
			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
