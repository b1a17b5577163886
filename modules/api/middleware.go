package api

import (
	domain "github.com/example/private-chat/domain/room"
	"github.com/example/private-chat/modules/room"
	"github.com/gofiber/fiber/v2"
)

const (
	// AuthContextKey is the Fiber locals key holding the domain.AuthContext.
	AuthContextKey = "auth"

	// TokenCookie carries the participant token.
	TokenCookie = "x-auth-token"
)

// RoomAuthMiddleware authenticates the roomId query parameter and token
// cookie against the room's participants.
func RoomAuthMiddleware(rooms room.RoomPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roomID := c.Query("roomId")
		token := c.Cookies(TokenCookie)
		if roomID == "" || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "unauthorized",
				Message: "roomId and participant token are required",
			})
		}

		auth, err := rooms.Authenticate(c.UserContext(), roomID, token)
		if err != nil {
			return writeError(c, err)
		}

		c.Locals(AuthContextKey, auth)
		return c.Next()
	}
}

// authFrom returns the AuthContext stored by RoomAuthMiddleware.
func authFrom(c *fiber.Ctx) domain.AuthContext {
	auth, _ := c.Locals(AuthContextKey).(domain.AuthContext)
	return auth
}

// SendLimitKey keys the send rate limit by participant token.
func SendLimitKey(c *fiber.Ctx) string {
	return authFrom(c).Token
}
