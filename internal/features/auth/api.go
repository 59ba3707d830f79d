package auth

import (
	"records-console/internal/common/api"
	"records-console/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuthApi struct {
	controller *AuthController
	auth       *middleware.Authenticator
}

func NewAuthApi(controller *AuthController, auth *middleware.Authenticator) api.Route {
	return &AuthApi{
		controller: controller,
		auth:       auth,
	}
}

// Setup registers all auth-related routes
func (h *AuthApi) Setup(app *fiber.App) {
	// Public routes
	app.Post("/api/auth/login", h.controller.Login)

	authGroup := app.Group("/api/auth", h.auth.Handler())
	authGroup.Post("/logout", h.controller.Logout)
	authGroup.Get("/me", h.controller.Me)

	perms := app.Group("/api/permissions", h.auth.Handler())
	perms.Get("/", h.controller.Permissions)
	perms.Get("/evaluate", h.controller.Evaluate)
}
