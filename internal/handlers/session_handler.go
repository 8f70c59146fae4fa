package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/josangl08/Ballers-V3-sub002/internal/models"
	"github.com/josangl08/Ballers-V3-sub002/internal/repository"
	"github.com/josangl08/Ballers-V3-sub002/internal/services"
)

type SessionHandler struct {
	service sessionApplicationService
}

type sessionApplicationService interface {
	Create(ctx context.Context, input services.CreateSessionInput) (*models.Session, []string, error)
	Update(ctx context.Context, sessionID int64, input services.UpdateSessionInput) (*models.Session, []string, error)
	Delete(ctx context.Context, sessionID int64) error
	Get(ctx context.Context, sessionID int64) (*models.Session, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.Session, error)
	CompleteElapsed(ctx context.Context) (int, error)
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type createSessionRequest struct {
	CoachID   int64   `json:"coach_id"`
	PlayerID  int64   `json:"player_id"`
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Notes     *string `json:"notes"`
}

type updateSessionRequest struct {
	StartTime string  `json:"start_time"`
	EndTime   string  `json:"end_time"`
	Status    string  `json:"status"`
	Notes     *string `json:"notes"`
}

func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	startTime, endTime, err := parseSessionTimes(req.StartTime, req.EndTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, warnings, err := h.service.Create(c.Context(), services.CreateSessionInput{
		CoachID:   req.CoachID,
		PlayerID:  req.PlayerID,
		StartTime: startTime,
		EndTime:   endTime,
		Notes:     req.Notes,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session":  session,
		"warnings": warnings,
	})
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	filter := repository.SessionListFilter{
		Status: strings.TrimSpace(c.Query("status")),
	}
	if filter.Status != "" && !models.SessionStatus(filter.Status).Valid() {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "status must be scheduled, completed or canceled"})
	}

	if raw := strings.TrimSpace(c.Query("coach_id")); raw != "" {
		coachID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || coachID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid coach_id"})
		}
		filter.CoachID = &coachID
	}
	if raw := strings.TrimSpace(c.Query("player_id")); raw != "" {
		playerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || playerID <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid player_id"})
		}
		filter.PlayerID = &playerID
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "from must be a valid RFC3339 timestamp"})
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "to must be a valid RFC3339 timestamp"})
		}
		filter.To = &to
	}

	sessions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.Get(c.Context(), sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req updateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	startTime, endTime, err := parseSessionTimes(req.StartTime, req.EndTime)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	status := models.SessionStatus(strings.TrimSpace(req.Status))
	if status == "" {
		status = models.SessionScheduled
	}

	session, warnings, err := h.service.Update(c.Context(), sessionID, services.UpdateSessionInput{
		StartTime: startTime,
		EndTime:   endTime,
		Status:    status,
		Notes:     req.Notes,
	})
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{
		"session":  session,
		"warnings": warnings,
	})
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	if err := h.service.Delete(c.Context(), sessionID); err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *SessionHandler) CompleteElapsed(c *fiber.Ctx) error {
	count, err := h.service.CompleteElapsed(c.Context())
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"completed": count})
}

func parseSessionTimes(startRaw, endRaw string) (time.Time, time.Time, error) {
	startTime, err := time.Parse(time.RFC3339, strings.TrimSpace(startRaw))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_time must be a valid RFC3339 timestamp")
	}
	endTime, err := time.Parse(time.RFC3339, strings.TrimSpace(endRaw))
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_time must be a valid RFC3339 timestamp")
	}
	return startTime, endTime, nil
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidSession):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrCoachNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Coach not found"})
	case errors.Is(err, services.ErrPlayerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Player not found"})
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
