// Package room holds the entities shared by the room lifecycle, relay and transport modules.
package room

import "time"

// Event names delivered to realtime subscribers.
const (
	EventChatMessage       = "chat.message"
	EventChatDestroy       = "chat.destroy"
	EventRoomCreated       = "room.created"
	EventParticipantJoined = "participant.joined"
)

// Default limits.
const (
	DefaultTTL          = 10 * time.Minute
	DefaultCapacity     = 2
	DefaultSenderMaxLen = 100
	DefaultTextMaxLen   = 500
)

// Room is a newly created chat room.
type Room struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
	Capacity  int           `json:"capacity"`
}

// Message is a chat message. Token is the author's participant token and
// is only ever shown back to its owner.
type Message struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	RoomID    string `json:"roomId"`
	Token     string `json:"token,omitempty"`
}

// Masked returns a copy of m without the author token.
func (m Message) Masked() Message {
	m.Token = ""
	return m
}

// AuthContext identifies an authenticated participant of a room.
type AuthContext struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token"`
}

// Admission is the outcome of an attempt to join a room.
type Admission int

// Admission outcomes.
const (
	AdmissionNotFound Admission = iota
	AdmissionFull
	AdmissionAlreadyMember
	AdmissionAdmitted
)

func (a Admission) String() string {
	switch a {
	case AdmissionFull:
		return "full"
	case AdmissionAlreadyMember:
		return "already-member"
	case AdmissionAdmitted:
		return "admitted"
	default:
		return "not-found"
	}
}

// DestroyReason tells subscribers why a room went away.
type DestroyReason string

// Destroy reasons.
const (
	ReasonDestroyed DestroyReason = "destroyed"
	ReasonExpired   DestroyReason = "expired"
)

// DestroyNotice is the payload of chat.destroy.
type DestroyNotice struct {
	IsDestroyed bool          `json:"isDestroyed"`
	Reason      DestroyReason `json:"reason"`
}
