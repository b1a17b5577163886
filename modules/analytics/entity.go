package analytics

import "time"

// DailyStats holds aggregate counters for one UTC day. It never references
// individual rooms, participants or message content.
type DailyStats struct {
	Day                string `gorm:"primaryKey;size:10"`
	RoomsCreated       int64  `gorm:"not null;default:0"`
	RoomsDestroyed     int64  `gorm:"not null;default:0"`
	RoomsExpired       int64  `gorm:"not null;default:0"`
	ParticipantsJoined int64  `gorm:"not null;default:0"`
	MessagesSent       int64  `gorm:"not null;default:0"`
	UpdatedAt          time.Time
}

// TableName overrides the table name.
func (DailyStats) TableName() string {
	return "daily_stats"
}

// Counter names a DailyStats column.
type Counter string

// Counters.
const (
	CounterRoomsCreated       Counter = "rooms_created"
	CounterRoomsDestroyed     Counter = "rooms_destroyed"
	CounterRoomsExpired       Counter = "rooms_expired"
	CounterParticipantsJoined Counter = "participants_joined"
	CounterMessagesSent       Counter = "messages_sent"
)

// Summary is the all-time total of every counter plus the most recent days.
type Summary struct {
	RoomsCreated       int64        `json:"rooms_created"`
	RoomsDestroyed     int64        `json:"rooms_destroyed"`
	RoomsExpired       int64        `json:"rooms_expired"`
	ParticipantsJoined int64        `json:"participants_joined"`
	MessagesSent       int64        `json:"messages_sent"`
	Days               []DaySummary `json:"days"`
}

// DaySummary is the JSON form of one DailyStats row.
type DaySummary struct {
	Day                string `json:"day"`
	RoomsCreated       int64  `json:"rooms_created"`
	RoomsDestroyed     int64  `json:"rooms_destroyed"`
	RoomsExpired       int64  `json:"rooms_expired"`
	ParticipantsJoined int64  `json:"participants_joined"`
	MessagesSent       int64  `json:"messages_sent"`
}
