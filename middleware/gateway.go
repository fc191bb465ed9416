package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// HeaderGatewaySecret carries the shared secret of the identity gateway that
// completed an external provider's sign-in ceremony.
const HeaderGatewaySecret = "x-gateway-secret"

// RequireGatewaySecret admits only requests presenting secret. An empty
// secret rejects everything.
func RequireGatewaySecret(secret string) fiber.Handler {
	want := []byte(secret)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(HeaderGatewaySecret))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid gateway credentials.",
			})
		}
		return c.Next()
	}
}
