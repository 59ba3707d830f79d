package lead

import (
	"records-console/internal/common/api"
	"records-console/internal/features/permission"
	"records-console/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type LeadApi struct {
	controller *LeadController
	auth       *middleware.Authenticator
}

func NewLeadApi(controller *LeadController, auth *middleware.Authenticator) api.Route {
	return &LeadApi{
		controller: controller,
		auth:       auth,
	}
}

func (h *LeadApi) Setup(app *fiber.App) {
	readLeads := middleware.RequirePermission(permission.ModuleRealEstate, permission.FeatureLeads, permission.ActionRead)

	leads := app.Group("/api/leads", h.auth.Handler())

	// Write and edit checks happen in the workflow guard and again at commit.
	leads.Post("/prepare", h.controller.Prepare)
	leads.Post("/commit", h.controller.Commit)

	leads.Get("/pending-actions", h.controller.ListPending)
	leads.Post("/pending-actions/:id/retry", h.controller.RetryPending)

	leads.Get("/:id", readLeads, h.controller.GetLead)

	app.Get("/api/lookups/:vocabulary", h.auth.Handler(), h.controller.GetLookup)
}
