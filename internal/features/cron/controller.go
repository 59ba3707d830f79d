package cron_feature

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

type CronController struct {
	Service CronService
}

func NewCronController(service CronService) *CronController {
	return &CronController{
		Service: service,
	}
}

// ListJobs godoc
// @Summary List background jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} JobInfo
// @Router /api/jobs [get]
func (c *CronController) ListJobs(ctx *fiber.Ctx) error {
	return ctx.JSON(c.Service.Jobs())
}

// RunJob godoc
// @Summary Run a background job now
// @Tags jobs
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/jobs/{name}/run [post]
func (c *CronController) RunJob(ctx *fiber.Ctx) error {
	ctxt, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := c.Service.RunNow(ctxt, ctx.Params("name"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"job": ctx.Params("name"), "result": result})
}
