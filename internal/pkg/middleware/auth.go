package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundilink/FundiLink/internal/pkg/usercontext"
)

// RequireAdmin ensures the authenticated caller has the admin role.
// It must run after APIKeyAuthMiddleware.
func RequireAdmin(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "login required",
		})
	}
	if !usercontext.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin role required",
		})
	}
	return c.Next()
}
