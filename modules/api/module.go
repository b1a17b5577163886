// Package api binds the room operations to HTTP and websocket routes.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/example/private-chat/modules/analytics"
	"github.com/example/private-chat/modules/room"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds HTTP settings.
type Config struct {
	Addr           string
	AllowedOrigins string
	CookieTTL      time.Duration
	CookieSecure   bool
}

// Module is the HTTP API module.
type Module struct {
	app       *fiber.App
	config    Config
	rooms     room.RoomPort
	stats     analytics.StatsPort
	hub       Subscriber
	sendLimit fiber.Handler
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.DependentModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module. hub serves the realtime stream and
// sendLimit, when not nil, throttles message sends.
func NewModule(config Config, hub Subscriber, sendLimit fiber.Handler, logger types.Logger) *Module {
	return &Module{
		config:    config,
		hub:       hub,
		sendLimit: sendLimit,
		logger:    logger.WithModule("api"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"room", "analytics"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "room":
		m.rooms = room.NewRoomAdapter(container)
	case "analytics":
		m.stats = analytics.NewStatsAdapter(container)
	}
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.rooms == nil {
		return fmt.Errorf("room dependency not set")
	}

	handlers := NewHandlers(m.rooms, m.stats, m.hub, m.config.CookieTTL, m.config.CookieSecure, m.logger)
	m.app = NewApp(handlers, m.rooms, m.sendLimit, m.config.AllowedOrigins)

	go func() {
		if err := m.app.Listen(m.config.Addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", m.config.Addr)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"addr": m.config.Addr,
		},
	}
}

// NewApp builds the Fiber application with every route.
func NewApp(h *Handlers, rooms room.RoomPort, sendLimit fiber.Handler, allowedOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
	}))

	app.Get("/health", h.Health)

	api := app.Group("/api")
	requireRoom := RoomAuthMiddleware(rooms)

	api.Post("/rooms", h.CreateRoom)
	api.Post("/rooms/join", h.JoinRoom)
	api.Get("/rooms/ttl", requireRoom, h.GetTTL)
	api.Get("/rooms/info", requireRoom, h.RoomInfo)
	api.Delete("/rooms", requireRoom, h.DestroyRoom)

	api.Get("/messages", requireRoom, h.ListMessages)
	if sendLimit != nil {
		api.Post("/messages", requireRoom, sendLimit, h.SendMessage)
	} else {
		api.Post("/messages", requireRoom, h.SendMessage)
	}

	api.Get("/stats", h.Stats)

	api.Use("/realtime", RealtimeUpgrade)
	api.Get("/realtime", websocket.New(h.Realtime))

	return app
}
