package broadcast

import (
	"context"
	"fmt"

	"github.com/example/private-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module is an EventConsumerModule that relays room events to hub subscribers.
type Module struct {
	hub       *Hub
	cancelHub context.CancelFunc
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.EventConsumerModule = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new broadcast module.
func NewModule(logger types.Logger) *Module {
	logger = logger.WithModule("broadcast")
	return &Module{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Start starts the hub.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast hub running")
	return nil
}

// Stop shuts down the hub and closes every subscription.
func (m *Module) Stop(_ context.Context) error {
	count := m.hub.SubscriptionCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast hub stopped", "subscriptions", count)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"subscriptions":  m.hub.SubscriptionCount(),
			"dropped_events": m.hub.Dropped(),
		},
	}
}

// RegisterEventConsumers registers the room event consumer.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomEventV1, m.handleRoomEvent, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomEvent consumer: %w", err)
	}
	m.logger.Info("Registered event consumers", "events", []string{"RoomEvent.v1"})
	return nil
}

func (m *Module) handleRoomEvent(_ context.Context, event events.RoomEvent, _ *mono.Msg) error {
	m.hub.Publish(event.RoomID, event.Name, event.Data)
	return nil
}

// Hub returns the subscription hub for the API module to use.
func (m *Module) Hub() *Hub {
	return m.hub
}
