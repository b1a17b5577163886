package api

import (
	"time"

	"github.com/example/private-chat/modules/analytics"
	"github.com/example/private-chat/modules/room"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// Handlers contains the HTTP handlers.
type Handlers struct {
	rooms        room.RoomPort
	stats        analytics.StatsPort
	hub          Subscriber
	cookieTTL    time.Duration
	cookieSecure bool
	logger       types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(rooms room.RoomPort, stats analytics.StatsPort, hub Subscriber, cookieTTL time.Duration, cookieSecure bool, logger types.Logger) *Handlers {
	return &Handlers{
		rooms:        rooms,
		stats:        stats,
		hub:          hub,
		cookieTTL:    cookieTTL,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// CreateRoom handles POST /api/rooms.
func (h *Handlers) CreateRoom(c *fiber.Ctx) error {
	resp, err := h.rooms.CreateRoom(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(CreateRoomResponse{
		RoomID:   resp.RoomID,
		TTL:      resp.TTL,
		Capacity: resp.Capacity,
	})
}

// JoinRoom handles POST /api/rooms/join. It issues the participant token cookie.
func (h *Handlers) JoinRoom(c *fiber.Ctx) error {
	roomID := c.Query("roomId")
	if roomID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "roomId is required",
		})
	}

	auth, err := h.rooms.JoinRoom(c.UserContext(), roomID, c.Cookies(TokenCookie))
	if err != nil {
		return writeError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    auth.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookieTTL),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(JoinRoomResponse{RoomID: auth.RoomID})
}

// GetTTL handles GET /api/rooms/ttl.
func (h *Handlers) GetTTL(c *fiber.Ctx) error {
	ttl, err := h.rooms.GetTTL(c.UserContext(), authFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(TTLResponse{TTL: ttl})
}

// RoomInfo handles GET /api/rooms/info.
func (h *Handlers) RoomInfo(c *fiber.Ctx) error {
	info, err := h.rooms.RoomInfo(c.UserContext(), authFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(info)
}

// DestroyRoom handles DELETE /api/rooms.
func (h *Handlers) DestroyRoom(c *fiber.Ctx) error {
	if err := h.rooms.DestroyRoom(c.UserContext(), authFrom(c)); err != nil {
		return writeError(c, err)
	}
	c.ClearCookie(TokenCookie)
	return c.JSON(OKResponse{OK: true})
}

// ListMessages handles GET /api/messages.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	messages, err := h.rooms.ListMessages(c.UserContext(), authFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(MessagesResponse{Messages: messages})
}

// SendMessage handles POST /api/messages.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid request body",
		})
	}

	msg, err := h.rooms.SendMessage(c.UserContext(), authFrom(c), req.Sender, req.Text)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(MessageResponse{Message: msg})
}

// Stats handles GET /api/stats.
func (h *Handlers) Stats(c *fiber.Ctx) error {
	if h.stats == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "unavailable"})
	}
	summary, err := h.stats.GetStats(c.UserContext())
	if err != nil {
		h.logger.Warn("Stats unavailable", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "unavailable"})
	}
	return c.JSON(summary)
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"module": "api",
	})
}
