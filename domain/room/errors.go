package room

import "errors"

// Sentinel errors for room operations.
var (
	// ErrUnauthorized is returned when the room id or token is missing or the token is not a participant.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRoomNotFound is returned when the room metadata no longer exists.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomFull is returned when a room already holds its maximum number of participants.
	ErrRoomFull = errors.New("room full")

	// ErrValidation is returned when message input fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("service unavailable")
)
