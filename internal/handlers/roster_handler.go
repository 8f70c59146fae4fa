package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/josangl08/Ballers-V3-sub002/internal/repository"
)

type RosterHandler struct {
	rosterRepo *repository.RosterRepository
}

func NewRosterHandler(rosterRepo *repository.RosterRepository) *RosterHandler {
	return &RosterHandler{rosterRepo: rosterRepo}
}

func (h *RosterHandler) ListCoaches(c *fiber.Ctx) error {
	coaches, err := h.rosterRepo.ListActiveCoaches(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list coaches"})
	}
	return c.JSON(fiber.Map{"coaches": coaches})
}

func (h *RosterHandler) ListPlayers(c *fiber.Ctx) error {
	players, err := h.rosterRepo.ListActivePlayers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list players"})
	}
	return c.JSON(fiber.Map{"players": players})
}
