package middleware

import (
	common_models "records-console/internal/common/models"
	"records-console/internal/features/permission"

	"github.com/gofiber/fiber/v2"
)

// RequirePermission gates a route on the session matrix. Handlers that mutate records
// evaluate again at execution time; this only keeps obviously denied requests out.
func RequirePermission(moduleID, featureID int, action permission.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		matrix, _ := c.Locals(common_models.MatrixLocalsKey).(*permission.Matrix)

		if !permission.Evaluate(matrix, moduleID, featureID, action) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Access denied: Insufficient permissions for this action",
			})
		}

		return c.Next()
	}
}
