package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type commandRequest struct {
	Prompt string `json:"prompt"`
}

type deviceActionRequest struct {
	Action string `json:"action"`
	Device string `json:"device"`
}

func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Prompt vazio",
		})
	}

	response := s.cmd.Command(c.Context(), req.Prompt)
	return c.JSON(fiber.Map{
		"status":   "ok",
		"response": response,
	})
}

func (s *Server) handleDevices(c *fiber.Ctx) error {
	toggles := []string{}
	sensors := []string{}
	for _, l := range s.skills.Listers() {
		toggles = append(toggles, l.Toggles()...)
		sensors = append(sensors, l.Sensors()...)
	}
	return c.JSON(fiber.Map{
		"status": "ok",
		"devices": fiber.Map{
			"toggles": toggles,
			"status":  sensors,
		},
	})
}

func (s *Server) handleDeviceStatus(c *fiber.Ctx) error {
	nickname := c.Query("nickname")
	for _, p := range s.skills.StatusProviders() {
		st, ok := p.StatusFor(nickname)
		if ok && st.State != "unreachable" {
			return c.JSON(st)
		}
	}
	return c.JSON(fiber.Map{"state": "unreachable"})
}

func (s *Server) handleDeviceAction(c *fiber.Ctx) error {
	var req deviceActionRequest
	if err := c.BodyParser(&req); err != nil || req.Action == "" || req.Device == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Pedido inválido",
		})
	}

	// Rebuild the spoken form so the command goes down the same path a
	// voice request would.
	prompt := fmt.Sprintf("%s o %s", req.Action, req.Device)
	response := s.cmd.Command(c.Context(), prompt)
	return c.JSON(fiber.Map{
		"status":   "ok",
		"response": response,
	})
}

func (s *Server) handleHelp(c *fiber.Ctx) error {
	commands := fiber.Map{"diz": "TTS"}
	for _, sk := range s.skills.All() {
		triggers := sk.Triggers()
		if len(triggers) == 0 {
			commands[sk.Name()] = "Ativo"
			continue
		}
		if len(triggers) > 3 {
			triggers = triggers[:3]
		}
		commands[sk.Name()] = strings.Join(triggers, ", ") + "..."
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"commands": commands,
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status())
}
