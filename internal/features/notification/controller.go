package notification

import (
	common_models "records-console/internal/common/models"
	"records-console/internal/features/session"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type NotificationController struct {
	hub    *Hub
	logger *zap.Logger
}

func NewNotificationController(hub *Hub, logger *zap.Logger) *NotificationController {
	return &NotificationController{
		hub:    hub,
		logger: logger.Named("ws"),
	}
}

// RequireUpgrade rejects plain HTTP requests to the websocket endpoint.
func (h *NotificationController) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "websocket upgrade required"})
}

// HandleWebSocket streams the session's events until the client disconnects.
func (h *NotificationController) HandleWebSocket(c *websocket.Conn) {
	sess, ok := c.Locals(common_models.SessionLocalsKey).(*session.Session)
	if !ok || sess == nil {
		_ = c.WriteJSON(fiber.Map{"error": "unauthenticated"})
		return
	}

	events, cancel := h.hub.Subscribe(sess.ID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("subscriber connected", zap.String("session_id", sess.ID))
	for {
		select {
		case <-closed:
			h.logger.Debug("subscriber disconnected", zap.String("session_id", sess.ID))
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(ev); err != nil {
				h.logger.Debug("write failed", zap.String("session_id", sess.ID), zap.Error(err))
				return
			}
		}
	}
}
