package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"deluxe_backend/pkg/utils/jwt"
)

const localsAccount = "account"

// AuthMiddleware requires a valid bearer token and stores its claims in
// c.Locals("account"). A 401 tells the client to drop its session.
func AuthMiddleware(tokens *jwt.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}

		claims, err := tokens.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(localsAccount, claims)
		return c.Next()
	}
}

// Claims returns the claims stored by AuthMiddleware.
func Claims(c *fiber.Ctx) *jwt.Claims {
	claims, _ := c.Locals(localsAccount).(*jwt.Claims)
	return claims
}

// RequireAccountOwner allows the request only when the :id route parameter
// is the authenticated account.
func RequireAccountOwner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := Claims(c)
		if claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authorization token",
			})
		}

		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid account ID",
			})
		}

		if uint(id) != claims.AccountID {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "You don't have permission to access this account",
			})
		}

		return c.Next()
	}
}
