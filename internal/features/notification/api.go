package notification

import (
	"records-console/internal/common/api"
	"records-console/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type NotificationApi struct {
	controller *NotificationController
	auth       *middleware.Authenticator
}

func NewNotificationApi(controller *NotificationController, auth *middleware.Authenticator) api.Route {
	return &NotificationApi{
		controller: controller,
		auth:       auth,
	}
}

func (h *NotificationApi) Setup(app *fiber.App) {
	app.Get("/api/ws",
		h.auth.Handler(),
		h.controller.RequireUpgrade,
		websocket.New(h.controller.HandleWebSocket),
	)
}
