package audit

import (
	"records-console/internal/common/api"
	"records-console/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type AuditApi struct {
	controller *AuditController
	auth       *middleware.Authenticator
}

func NewAuditApi(controller *AuditController, auth *middleware.Authenticator) api.Route {
	return &AuditApi{
		controller: controller,
		auth:       auth,
	}
}

func (h *AuditApi) Setup(app *fiber.App) {
	audit := app.Group("/api/audit-logs", h.auth.Handler())

	audit.Get("/", h.controller.ListLogs)
}
