package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deluxe_backend/pkg/utils/jwt"
)

func newApp(tokens *jwt.Manager) *fiber.App {
	app := fiber.New()
	app.Get("/account/:id", AuthMiddleware(tokens), RequireAccountOwner(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"account_id": Claims(c).AccountID})
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tokens := jwt.NewManager("secret", time.Hour)
	app := newApp(tokens)

	token, err := tokens.GenerateToken(3, "kim", "kim@deluxe.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/account/3", "", fiber.StatusUnauthorized},
		{"not bearer", "/account/3", "Basic abc", fiber.StatusUnauthorized},
		{"bad token", "/account/3", "Bearer abc", fiber.StatusUnauthorized},
		{"own account", "/account/3", "Bearer " + token, fiber.StatusOK},
		{"other account", "/account/4", "Bearer " + token, fiber.StatusForbidden},
		{"bad id", "/account/abc", "Bearer " + token, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
