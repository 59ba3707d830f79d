package system

import (
	"context"
	"time"

	"records-console/internal/common/api"
	"records-console/internal/config"
	"records-console/internal/database"

	"github.com/gofiber/fiber/v2"
)

type HealthApi struct {
	db  *database.MongodbDB
	cfg *config.Config
}

func NewHealthApi(db *database.MongodbDB, cfg *config.Config) api.Route {
	return &HealthApi{db: db, cfg: cfg}
}

// Setup registers health check routes
func (h *HealthApi) Setup(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/health/ready", h.Ready)
}

// HealthCheck godoc
// @Summary      Health Check
// @Description  Check if the server is up
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string  "OK"
// @Router       /health [get]
func (h *HealthApi) HealthCheck(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Ready reports whether the ledger database answers.
func (h *HealthApi) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	if err := h.db.DB.Client().Ping(ctx, nil); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ready", "gateway": h.cfg.GatewayMode})
}
