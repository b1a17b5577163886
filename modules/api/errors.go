package api

import (
	"errors"

	domain "github.com/example/private-chat/domain/room"
	"github.com/gofiber/fiber/v2"
)

// writeError maps domain errors onto HTTP responses.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "unauthorized", Message: "Unauthorized"})
	case errors.Is(err, domain.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "room-not-found", Message: "Room not found or already destroyed"})
	case errors.Is(err, domain.ErrRoomFull):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "room-full", Message: "Room is full"})
	case errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "validation", Message: err.Error()})
	case errors.Is(err, domain.ErrUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "unavailable", Message: "Service temporarily unavailable"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "server_error", Message: "Internal Server Error"})
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
