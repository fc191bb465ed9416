package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sehatbridge/sehatauth"
)

// HeaderAuthToken is the header older clients send the session token in.
const HeaderAuthToken = "x-auth-token"

const claimsLocalsKey = "sehatauth.claims"

// TokenValidator is satisfied by *sehatauth.Engine.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*sehatauth.TokenClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by [Guard].
func ClaimsFromContext(ctx context.Context) (*sehatauth.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*sehatauth.TokenClaims)
	return claims, ok
}

// Claims returns the claims stored by [RequireToken].
func Claims(c *fiber.Ctx) (*sehatauth.TokenClaims, bool) {
	claims, ok := c.Locals(claimsLocalsKey).(*sehatauth.TokenClaims)
	return claims, ok
}

// RequireToken rejects requests without a valid session token with 401 and
// stores the validated claims for [Claims].
func RequireToken(v TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v == nil {
			return unauthorized(c)
		}

		token, ok := extractToken(c.Get(HeaderAuthToken), c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorized(c)
		}

		claims, err := v.ValidateToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c)
		}

		c.Locals(claimsLocalsKey, claims)
		c.SetUserContext(context.WithValue(c.UserContext(), claimsContextKey{}, claims))
		return c.Next()
	}
}

// Guard is the net/http form of [RequireToken].
func Guard(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := extractToken(r.Header.Get(HeaderAuthToken), r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.ValidateToken(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": "Access denied. Invalid or missing token.",
	})
}

// extractToken prefers the raw header, then a Bearer authorization value.
func extractToken(raw, authorization string) (string, bool) {
	if token := strings.TrimSpace(raw); token != "" {
		return token, true
	}

	const bearer = "Bearer "
	if !strings.HasPrefix(authorization, bearer) {
		return "", false
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
