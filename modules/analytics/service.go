package analytics

import (
	"context"
	"encoding/json"
	"time"

	domain "github.com/example/private-chat/domain/room"
	"github.com/example/private-chat/events"
	"golang.org/x/sync/singleflight"
)

// recentDays is how many days a summary lists.
const recentDays = 7

// Service turns room events into counters.
type Service struct {
	repo    *Repository
	sfGroup singleflight.Group
}

// NewService creates a new analytics service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Record counts one room event. Unknown events are ignored.
func (s *Service) Record(ctx context.Context, event events.RoomEvent) error {
	counter, ok := counterFor(event)
	if !ok {
		return nil
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	return s.repo.Increment(ctx, counter, at)
}

// Summary returns the aggregate counters. Concurrent callers share one query.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	v, err, _ := s.sfGroup.Do("summary", func() (any, error) {
		return s.repo.Summary(ctx, recentDays)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Summary), nil
}

func counterFor(event events.RoomEvent) (Counter, bool) {
	switch event.Name {
	case domain.EventRoomCreated:
		return CounterRoomsCreated, true
	case domain.EventParticipantJoined:
		return CounterParticipantsJoined, true
	case domain.EventChatMessage:
		return CounterMessagesSent, true
	case domain.EventChatDestroy:
		var notice domain.DestroyNotice
		if err := json.Unmarshal(event.Data, &notice); err == nil && notice.Reason == domain.ReasonExpired {
			return CounterRoomsExpired, true
		}
		return CounterRoomsDestroyed, true
	}
	return "", false
}
