package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/josangl08/Ballers-V3-sub002/internal/calendar"
	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
	"github.com/josangl08/Ballers-V3-sub002/internal/services"
)

const defaultWatchTTL = 7 * 24 * time.Hour

type syncControlService interface {
	ForceSync(ctx context.Context) (*calsync.Report, error)
	Start() bool
	Stop() bool
	Status() services.AutoSyncStats
}

type calendarWatcher interface {
	Watch(ctx context.Context, address, token string, ttl time.Duration) (*calendar.WatchChannel, error)
	StopChannel(ctx context.Context, channelID, resourceID string) error
}

type SyncHandler struct {
	auto           syncControlService
	watcher        calendarWatcher
	webhookBaseURL string
	webhookToken   string

	mu      sync.Mutex
	channel *calendar.WatchChannel
}

func NewSyncHandler(
	auto *services.AutoSyncService,
	client *calendar.Client,
	webhookBaseURL string,
	webhookToken string,
) *SyncHandler {
	h := &SyncHandler{
		auto:           auto,
		webhookBaseURL: webhookBaseURL,
		webhookToken:   webhookToken,
	}
	if client != nil {
		h.watcher = client
	}
	return h
}

// RunSync triggers a full sync cycle and waits for its report. A run
// already in flight answers 409 instead of queueing behind the lock.
func (h *SyncHandler) RunSync(c *fiber.Ctx) error {
	report, err := h.auto.ForceSync(c.Context())
	if err != nil {
		if errors.Is(err, calsync.ErrSyncBusy) {
			return c.Status(fiber.StatusConflict).
				JSON(fiber.Map{"error": "A sync run is already in progress"})
		}
		if errors.Is(err, services.ErrSyncUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).
				JSON(fiber.Map{"error": "Calendar sync is not configured"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Sync run failed", "detail": err.Error()})
	}

	return c.JSON(fiber.Map{"report": report})
}

func (h *SyncHandler) SyncStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": h.auto.Status()})
}

func (h *SyncHandler) StartAutoSync(c *fiber.Ctx) error {
	started := h.auto.Start()
	return c.JSON(fiber.Map{
		"running":         true,
		"already_running": !started,
	})
}

func (h *SyncHandler) StopAutoSync(c *fiber.Ctx) error {
	stopped := h.auto.Stop()
	return c.JSON(fiber.Map{
		"running":         false,
		"already_stopped": !stopped,
	})
}

// StartWatch registers a push notification channel with the calendar so
// remote edits trigger a sync without waiting for the next tick.
func (h *SyncHandler) StartWatch(c *fiber.Ctx) error {
	if h.watcher == nil || strings.TrimSpace(h.webhookBaseURL) == "" {
		return c.Status(fiber.StatusUnprocessableEntity).
			JSON(fiber.Map{"error": "Webhook base URL is not configured"})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channel != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "A watch channel is already active",
			"channel": h.channel,
		})
	}

	address := strings.TrimRight(h.webhookBaseURL, "/") + "/webhooks/calendar"
	channel, err := h.watcher.Watch(c.Context(), address, h.webhookToken, defaultWatchTTL)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).
			JSON(fiber.Map{"error": "Failed to register watch channel", "detail": err.Error()})
	}

	h.channel = channel
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"channel": channel})
}

func (h *SyncHandler) StopWatch(c *fiber.Ctx) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channel == nil {
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"error": "No active watch channel"})
	}

	if err := h.watcher.StopChannel(c.Context(), h.channel.ID, h.channel.ResourceID); err != nil {
		return c.Status(fiber.StatusBadGateway).
			JSON(fiber.Map{"error": "Failed to stop watch channel", "detail": err.Error()})
	}

	h.channel = nil
	return c.JSON(fiber.Map{"status": "stopped"})
}
