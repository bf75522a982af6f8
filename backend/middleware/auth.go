package middleware

import (
	"github.com/gofiber/fiber/v2"

	"learnpath/backend/config"
	"learnpath/backend/models"
	"learnpath/backend/utils"
)

// AuthMiddleware validates the bearer token and stores its claims for the handlers.
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.ExtractClaimsFromToken(c, cfg)
		if err != nil {
			return utils.Unauthorized(c, "Unauthorized")
		}
		c.Locals(utils.ClaimsKey, claims)
		return c.Next()
	}
}

// StaffMiddleware must run after AuthMiddleware.
func StaffMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := utils.CurrentClaims(c)
		if !ok {
			return utils.Unauthorized(c, "Unauthorized")
		}
		if !models.IsStaffRole(claims.Role) {
			return utils.Forbidden(c, "Forbidden - staff access required")
		}
		return c.Next()
	}
}
