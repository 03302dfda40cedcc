// Package api is the assistant's HTTP surface: text commands, device
// listings and control, help, and a websocket event feed.
package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/mfalcao/phantasma/internal/log"
	"github.com/mfalcao/phantasma/pkg/hub"
	"github.com/mfalcao/phantasma/pkg/skill"
)

// Commander runs a text command through the assistant under the API
// session and returns the response text.
type Commander interface {
	Command(ctx context.Context, prompt string) string
}

// Status is the assistant snapshot served on /api/status.
type Status struct {
	Speaking       bool   `json:"speaking"`
	CurrentSession string `json:"current_session"`
	Listeners      int    `json:"listeners"`
}

// Config holds the API server settings.
type Config struct {
	// ListenAddr is the host:port to bind, e.g. ":5000".
	ListenAddr string
}

// Server is the HTTP API server.
type Server struct {
	app    *fiber.App
	cfg    Config
	cmd    Commander
	skills *skill.Registry
	events *hub.Hub
	status func() Status
	logger *slog.Logger
}

// NewServer creates the API server and mounts all routes.
func NewServer(cfg Config, cmd Commander, skills *skill.Registry, events *hub.Hub, status func() Status) *Server {
	s := &Server{
		cfg:    cfg,
		cmd:    cmd,
		skills: skills,
		events: events,
		status: status,
		logger: log.Component("api"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Phantasma",
		DisableStartupMessage: true,
	})

	// CORS so the dashboard can live anywhere on the LAN.
	app.Use(cors.New())

	app.Post("/comando", s.handleCommand)
	app.Get("/get_devices", s.handleDevices)
	app.Get("/device_status", s.handleDeviceStatus)
	app.Post("/device_action", s.handleDeviceAction)
	app.Get("/help", s.handleHelp)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	for _, rr := range skills.Registrars() {
		rr.RegisterRoutes(api)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("api listening", "addr", s.cfg.ListenAddr)
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.events, c)
	client.Run()
}
