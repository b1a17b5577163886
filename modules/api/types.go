package api

import domain "github.com/example/private-chat/domain/room"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// CreateRoomResponse is the reply to POST /api/rooms.
type CreateRoomResponse struct {
	RoomID   string `json:"room_id"`
	TTL      int64  `json:"ttl"`
	Capacity int    `json:"capacity"`
}

// JoinRoomResponse is the reply to POST /api/rooms/join.
type JoinRoomResponse struct {
	RoomID string `json:"room_id"`
}

// TTLResponse is the reply to GET /api/rooms/ttl.
type TTLResponse struct {
	TTL int64 `json:"ttl"`
}

// OKResponse acknowledges an operation.
type OKResponse struct {
	OK bool `json:"ok"`
}

// SendMessageRequest is the body of POST /api/messages.
type SendMessageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message domain.Message `json:"message"`
}

// MessagesResponse wraps the room history.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}
