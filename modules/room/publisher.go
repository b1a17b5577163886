package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/private-chat/domain/room"
	"github.com/example/private-chat/events"
	"github.com/go-monolith/mono"
)

// busPublisher publishes room events on the mono EventBus.
type busPublisher struct {
	bus mono.EventBus
}

// Publish wraps payload in a RoomEvent and publishes it.
func (p *busPublisher) Publish(_ context.Context, roomID, name string, payload any) error {
	if p.bus == nil {
		return fmt.Errorf("%w: event bus not set", domain.ErrUnavailable)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}

	event := events.RoomEvent{
		RoomID:     roomID,
		Name:       name,
		Data:       data,
		OccurredAt: time.Now(),
	}
	if err := events.RoomEventV1.Publish(p.bus, event, nil); err != nil {
		return fmt.Errorf("%w: publish %s: %w", domain.ErrUnavailable, name, err)
	}
	return nil
}
