package room

import (
	"time"

	domain "github.com/example/private-chat/domain/room"
)

// CreateRoomRequest is the request for the create-room service.
type CreateRoomRequest struct{}

// CreateRoomResponse is the response from the create-room service.
type CreateRoomResponse struct {
	RoomID    string    `json:"room_id"`
	TTL       int64     `json:"ttl"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

// JoinRoomRequest is the request for the join-room service.
type JoinRoomRequest struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token,omitempty"`
}

// AuthRequest carries the room id and participant token of a caller.
type AuthRequest struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

// AuthResponse is the authenticated context returned by join-room and authenticate.
type AuthResponse struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
}

// TTLResponse is the response from the get-ttl service.
type TTLResponse struct {
	TTL int64 `json:"ttl"`
}

// AckResponse acknowledges an operation without a result.
type AckResponse struct {
	OK bool `json:"ok"`
}

// ListMessagesResponse is the response from the list-messages service.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
}

// SendMessageRequest is the request for the send-message service.
type SendMessageRequest struct {
	RoomID string `json:"room_id"`
	Token  string `json:"token"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// MessageResponse is the response from the send-message service.
type MessageResponse struct {
	Message domain.Message `json:"message"`
}

// RoomInfoResponse is the response from the room-info service.
type RoomInfoResponse struct {
	RoomID       string    `json:"room_id"`
	CreatedAt    time.Time `json:"created_at"`
	TTL          int64     `json:"ttl"`
	Participants int       `json:"participants"`
	Capacity     int       `json:"capacity"`
}

// seconds converts a remaining lifetime to the nearest whole second. A PTTL
// read a few milliseconds after creation still reports the configured TTL.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second/2) / time.Second)
}
