package api

import (
	"strings"

	domain "github.com/example/private-chat/domain/room"
	"github.com/example/private-chat/modules/broadcast"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// defaultRealtimeEvents are streamed when the client does not name any.
var defaultRealtimeEvents = []string{domain.EventChatMessage, domain.EventChatDestroy}

// Subscriber opens room event streams.
type Subscriber interface {
	Subscribe(roomID string, names ...string) *broadcast.Subscription
}

// RealtimeUpgrade only lets websocket upgrades with a roomId through.
func RealtimeUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if c.Query("roomId") == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "roomId is required",
		})
	}
	return c.Next()
}

// Realtime streams room events as JSON frames {event, roomId, data} until
// the client disconnects or the server shuts down. The optional events query
// parameter is a comma separated list of event names to receive; it defaults
// to chat messages and the destroy signal.
func (h *Handlers) Realtime(conn *websocket.Conn) {
	roomID := conn.Query("roomId")
	names := parseEventNames(conn.Query("events"))
	if len(names) == 0 {
		names = defaultRealtimeEvents
	}
	sub := h.hub.Subscribe(roomID, names...)
	defer sub.Close()

	// Inbound frames are ignored; reading detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("Realtime write failed", "roomID", roomID, "error", err)
				return
			}
		}
	}
}

func parseEventNames(raw string) []string {
	var names []string
	for _, n := range strings.Split(raw, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
