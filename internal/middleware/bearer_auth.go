package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/technosupport/ts-snapscout/internal/tokens"
)

type contextKey string

const claimsKey contextKey = "claims"

type TokenValidator interface {
	Validate(tokenString string) (*tokens.Claims, error)
}

type BearerAuth struct {
	tokens TokenValidator
}

func NewBearerAuth(t TokenValidator) *BearerAuth {
	return &BearerAuth{tokens: t}
}

// Middleware verifies the bearer token and injects its claims into the
// request context.
func (m *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.Validate(parts[1])
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims injected by Middleware, or nil.
func ClaimsFromContext(ctx context.Context) *tokens.Claims {
	c, _ := ctx.Value(claimsKey).(*tokens.Claims)
	return c
}
