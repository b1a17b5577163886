// Package room implements the room lifecycle manager, the participant token
// authenticator and the message relay, and exposes them as request-reply services.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/example/private-chat/domain/room"
	"github.com/example/private-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// expiryHandlerTimeout bounds the work done for one expired room.
const expiryHandlerTimeout = 5 * time.Second

// ExpiryWatcher delivers store-side expirations of room metadata.
type ExpiryWatcher interface {
	EnableExpiryEvents(ctx context.Context) error
	WatchExpirations(ctx context.Context, onExpired func(roomID string)) error
}

// Module is the room domain module.
type Module struct {
	service   *Service
	publisher *busPublisher
	watcher   ExpiryWatcher
	config    Config
	logger    types.Logger

	cancelWatch context.CancelFunc
	wg          sync.WaitGroup
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the room module. A nil watcher disables expiry notifications.
func NewModule(store Store, watcher ExpiryWatcher, config Config, logger types.Logger) (*Module, error) {
	logger = logger.WithModule("room")
	publisher := &busPublisher{}

	service, err := NewService(store, publisher, config, logger)
	if err != nil {
		return nil, err
	}

	return &Module{
		service:   service,
		publisher: publisher,
		watcher:   watcher,
		config:    config,
		logger:    logger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "room"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.publisher.bus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomEventV1.ToBase(),
	}
}

// Start launches the expiry watcher when enabled.
func (m *Module) Start(_ context.Context) error {
	if m.watcher != nil {
		m.startExpiryWatcher()
	}
	m.logger.Info("Room module started",
		"ttl", m.config.TTL,
		"capacity", m.config.Capacity,
		"expiryNotifications", m.watcher != nil)
	return nil
}

// Stop stops the expiry watcher.
func (m *Module) Stop(_ context.Context) error {
	if m.cancelWatch != nil {
		m.cancelWatch()
	}
	m.wg.Wait()
	m.logger.Info("Room module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.publisher.bus != nil,
		Message: "operational",
		Details: map[string]any{
			"ttl_seconds": int64(m.config.TTL.Seconds()),
			"capacity":    m.config.Capacity,
		},
	}
}

// Service returns the room service.
func (m *Module) Service() *Service {
	return m.service
}

func (m *Module) startExpiryWatcher() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelWatch = cancel

	if err := m.watcher.EnableExpiryEvents(ctx); err != nil {
		// Managed Redis deployments often forbid CONFIG SET; the server may
		// already be configured.
		m.logger.Warn("Could not enable keyspace expiry events", "error", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.watcher.WatchExpirations(ctx, func(roomID string) {
			hctx, hcancel := context.WithTimeout(context.Background(), expiryHandlerTimeout)
			defer hcancel()
			if err := m.service.HandleExpired(hctx, roomID); err != nil {
				m.logger.Error("Failed to handle room expiry", "roomID", roomID, "error", err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Expiry watcher stopped", "error", err)
		}
	}()
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create-room", json.Unmarshal, json.Marshal, m.handleCreateRoom,
	); err != nil {
		return fmt.Errorf("failed to register create-room service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "join-room", json.Unmarshal, json.Marshal, m.handleJoinRoom,
	); err != nil {
		return fmt.Errorf("failed to register join-room service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "authenticate", json.Unmarshal, json.Marshal, m.handleAuthenticate,
	); err != nil {
		return fmt.Errorf("failed to register authenticate service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-ttl", json.Unmarshal, json.Marshal, m.handleGetTTL,
	); err != nil {
		return fmt.Errorf("failed to register get-ttl service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "destroy-room", json.Unmarshal, json.Marshal, m.handleDestroyRoom,
	); err != nil {
		return fmt.Errorf("failed to register destroy-room service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "list-messages", json.Unmarshal, json.Marshal, m.handleListMessages,
	); err != nil {
		return fmt.Errorf("failed to register list-messages service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "send-message", json.Unmarshal, json.Marshal, m.handleSendMessage,
	); err != nil {
		return fmt.Errorf("failed to register send-message service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "room-info", json.Unmarshal, json.Marshal, m.handleRoomInfo,
	); err != nil {
		return fmt.Errorf("failed to register room-info service: %w", err)
	}

	m.logger.Info("Registered services",
		"services", []string{"create-room", "join-room", "authenticate", "get-ttl", "destroy-room", "list-messages", "send-message", "room-info"})
	return nil
}

func (m *Module) handleCreateRoom(ctx context.Context, _ CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	room, err := m.service.CreateRoom(ctx)
	if err != nil {
		return CreateRoomResponse{}, m.logFailure("create-room", err)
	}
	return CreateRoomResponse{
		RoomID:    room.ID,
		TTL:       seconds(room.TTL),
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt,
	}, nil
}

func (m *Module) handleJoinRoom(ctx context.Context, req JoinRoomRequest, _ *mono.Msg) (AuthResponse, error) {
	auth, err := m.service.JoinRoom(ctx, req.RoomID, req.Token)
	if err != nil {
		return AuthResponse{}, m.logFailure("join-room", err)
	}
	return AuthResponse{RoomID: auth.RoomID, Token: auth.Token}, nil
}

func (m *Module) handleAuthenticate(ctx context.Context, req AuthRequest, _ *mono.Msg) (AuthResponse, error) {
	auth, err := m.service.Authenticate(ctx, req.RoomID, req.Token)
	if err != nil {
		return AuthResponse{}, m.logFailure("authenticate", err)
	}
	return AuthResponse{RoomID: auth.RoomID, Token: auth.Token}, nil
}

func (m *Module) handleGetTTL(ctx context.Context, req AuthRequest, _ *mono.Msg) (TTLResponse, error) {
	auth, err := m.authorize(ctx, "get-ttl", req.RoomID, req.Token)
	if err != nil {
		return TTLResponse{}, err
	}
	ttl, err := m.service.GetRemainingTTL(ctx, auth.RoomID)
	if err != nil {
		return TTLResponse{}, m.logFailure("get-ttl", err)
	}
	return TTLResponse{TTL: seconds(ttl)}, nil
}

func (m *Module) handleDestroyRoom(ctx context.Context, req AuthRequest, _ *mono.Msg) (AckResponse, error) {
	auth, err := m.authorize(ctx, "destroy-room", req.RoomID, req.Token)
	if err != nil {
		return AckResponse{}, err
	}
	if err := m.service.DestroyRoom(ctx, auth); err != nil {
		return AckResponse{}, m.logFailure("destroy-room", err)
	}
	return AckResponse{OK: true}, nil
}

func (m *Module) handleListMessages(ctx context.Context, req AuthRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	auth, err := m.authorize(ctx, "list-messages", req.RoomID, req.Token)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	messages, err := m.service.ListMessages(ctx, auth)
	if err != nil {
		return ListMessagesResponse{}, m.logFailure("list-messages", err)
	}
	return ListMessagesResponse{Messages: messages}, nil
}

func (m *Module) handleSendMessage(ctx context.Context, req SendMessageRequest, _ *mono.Msg) (MessageResponse, error) {
	auth, err := m.authorize(ctx, "send-message", req.RoomID, req.Token)
	if err != nil {
		return MessageResponse{}, err
	}
	msg, err := m.service.SendMessage(ctx, auth, req.Sender, req.Text)
	if err != nil {
		return MessageResponse{}, m.logFailure("send-message", err)
	}
	return MessageResponse{Message: msg}, nil
}

func (m *Module) handleRoomInfo(ctx context.Context, req AuthRequest, _ *mono.Msg) (RoomInfoResponse, error) {
	auth, err := m.authorize(ctx, "room-info", req.RoomID, req.Token)
	if err != nil {
		return RoomInfoResponse{}, err
	}
	info, err := m.service.RoomInfo(ctx, auth)
	if err != nil {
		return RoomInfoResponse{}, m.logFailure("room-info", err)
	}
	return RoomInfoResponse{
		RoomID:       info.RoomID,
		CreatedAt:    info.CreatedAt,
		TTL:          seconds(info.TTL),
		Participants: info.Participants,
		Capacity:     info.Capacity,
	}, nil
}

// authorize checks the caller's participant token. Every service except
// create-room, join-room and authenticate runs it before touching the room.
func (m *Module) authorize(ctx context.Context, service, roomID, token string) (domain.AuthContext, error) {
	auth, err := m.service.Authenticate(ctx, roomID, token)
	if err != nil {
		return domain.AuthContext{}, m.logFailure(service, err)
	}
	return auth, nil
}

// logFailure logs infrastructure failures and passes every error through.
func (m *Module) logFailure(service string, err error) error {
	if !IsClientError(err) {
		m.logger.Error("Service call failed", "service", service, "error", err)
	}
	return err
}
