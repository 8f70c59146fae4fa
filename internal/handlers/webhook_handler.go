package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
)

type syncTrigger interface {
	TriggerSoon(trigger string)
}

// WebhookHandler receives Google Calendar push notifications. The
// notification body is empty; everything of interest rides in headers.
type WebhookHandler struct {
	trigger syncTrigger
	token   string
	logger  *log.Logger
}

func NewWebhookHandler(trigger syncTrigger, token string, logger *log.Logger) *WebhookHandler {
	return &WebhookHandler{
		trigger: trigger,
		token:   token,
		logger:  logger,
	}
}

func (h *WebhookHandler) HandleCalendarNotification(c *fiber.Ctx) error {
	if h.token != "" && c.Get("X-Goog-Channel-Token") != h.token {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid channel token"})
	}

	channelID := c.Get("X-Goog-Channel-ID")
	state := c.Get("X-Goog-Resource-State")

	switch state {
	case "sync":
		// Channel registration handshake, nothing changed yet.
		h.logger.Printf("watch channel %s confirmed", channelID)
	case "exists", "update", "updated":
		h.logger.Printf("calendar change notification on channel %s", channelID)
		h.trigger.TriggerSoon("webhook")
	default:
		h.logger.Printf("ignoring notification state %q on channel %s", state, channelID)
	}

	return c.SendStatus(fiber.StatusOK)
}
