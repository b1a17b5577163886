// Package events declares the events exchanged between modules over the mono EventBus.
package events

import (
	"encoding/json"
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomEvent carries one named room event. Name is the realtime event name
// (chat.message, chat.destroy, room.created, participant.joined) and Data its
// JSON payload.
type RoomEvent struct {
	RoomID     string          `json:"room_id"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RoomEventV1 is the typed event definition for every room event.
// Subject: events.room.v1.room-event
var RoomEventV1 = helper.EventDefinition[RoomEvent](
	"room", "RoomEvent", "v1",
)
