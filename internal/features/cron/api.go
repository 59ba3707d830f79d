package cron_feature

import (
	"records-console/internal/common/api"
	"records-console/internal/features/permission"
	"records-console/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CronApi struct {
	cronController *CronController
	auth           *middleware.Authenticator
}

func NewCronApi(cronController *CronController, auth *middleware.Authenticator) api.Route {
	return &CronApi{
		cronController: cronController,
		auth:           auth,
	}
}

func (h *CronApi) Setup(app *fiber.App) {
	jobs := app.Group("/api/jobs", h.auth.Handler())

	jobs.Get("/", middleware.RequirePermission(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionRead), h.cronController.ListJobs)
	jobs.Post("/:name/run", middleware.RequirePermission(permission.ModuleRealEstate, permission.FeatureActions, permission.ActionWrite), h.cronController.RunJob)
}
