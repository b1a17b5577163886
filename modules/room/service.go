package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/private-chat/domain/room"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/go-playground/validator/v10"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/samber/lo"
)

// idLength gives room ids, tokens and message ids 126 bits of entropy.
const idLength = 21

// Store is the expiring storage the room service runs on.
type Store interface {
	CreateMetadata(ctx context.Context, roomID string, createdAt time.Time, ttl time.Duration) error
	GetTTL(ctx context.Context, roomID string) (time.Duration, error)
	SetTTL(ctx context.Context, roomID string, ttl time.Duration) error
	Exists(ctx context.Context, roomID string) (bool, error)
	Admit(ctx context.Context, roomID, presented, fresh string, capacity int, now time.Time) (domain.Admission, error)
	IsParticipant(ctx context.Context, roomID, token string) (bool, error)
	Participants(ctx context.Context, roomID string) (int, error)
	CreatedAt(ctx context.Context, roomID string) (time.Time, error)
	AppendMessage(ctx context.Context, roomID string, msg domain.Message) (bool, error)
	ListMessages(ctx context.Context, roomID string) ([]domain.Message, error)
	DeleteRoomData(ctx context.Context, roomID string) error
}

// EventPublisher fans a named room event out to the room's subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, roomID, name string, payload any) error
}

// Config holds room limits.
type Config struct {
	TTL             time.Duration
	Capacity        int
	MaxSenderLength int
	MaxTextLength   int
}

// DefaultConfig returns the default room limits.
func DefaultConfig() Config {
	return Config{
		TTL:             domain.DefaultTTL,
		Capacity:        domain.DefaultCapacity,
		MaxSenderLength: domain.DefaultSenderMaxLen,
		MaxTextLength:   domain.DefaultTextMaxLen,
	}
}

// Info describes a live room.
type Info struct {
	RoomID       string
	CreatedAt    time.Time
	TTL          time.Duration
	Participants int
	Capacity     int
}

// Service implements room lifecycle, token authentication and message relay.
type Service struct {
	store     Store
	publisher EventPublisher
	config    Config
	newID     func() string
	now       func() time.Time
	validate  *validator.Validate
	logger    types.Logger
}

// NewService creates a room service.
func NewService(store Store, publisher EventPublisher, config Config, logger types.Logger) (*Service, error) {
	gen, err := nanoid.Standard(idLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create id generator: %w", err)
	}
	return &Service{
		store:     store,
		publisher: publisher,
		config:    config,
		newID:     gen,
		now:       time.Now,
		validate:  validator.New(),
		logger:    logger,
	}, nil
}

// CreateRoom creates an empty room that expires after the configured TTL.
func (s *Service) CreateRoom(ctx context.Context) (domain.Room, error) {
	room := domain.Room{
		ID:        s.newID(),
		CreatedAt: s.now(),
		TTL:       s.config.TTL,
		Capacity:  s.config.Capacity,
	}

	if err := s.store.CreateMetadata(ctx, room.ID, room.CreatedAt, room.TTL); err != nil {
		return domain.Room{}, err
	}

	s.publish(ctx, room.ID, domain.EventRoomCreated, map[string]int64{"ttl": int64(room.TTL.Seconds())})
	s.logger.Info("Room created", "roomID", room.ID, "ttl", room.TTL)
	return room, nil
}

// JoinRoom admits a participant. A token that already belongs to the room
// is returned unchanged; otherwise a new token is issued while capacity allows.
func (s *Service) JoinRoom(ctx context.Context, roomID, presented string) (domain.AuthContext, error) {
	if roomID == "" {
		return domain.AuthContext{}, domain.ErrRoomNotFound
	}

	fresh := s.newID()
	admission, err := s.store.Admit(ctx, roomID, presented, fresh, s.config.Capacity, s.now())
	if err != nil {
		return domain.AuthContext{}, err
	}

	switch admission {
	case domain.AdmissionAlreadyMember:
		return domain.AuthContext{RoomID: roomID, Token: presented}, nil
	case domain.AdmissionAdmitted:
		s.publish(ctx, roomID, domain.EventParticipantJoined, struct{}{})
		s.logger.Info("Participant joined", "roomID", roomID)
		return domain.AuthContext{RoomID: roomID, Token: fresh}, nil
	case domain.AdmissionFull:
		return domain.AuthContext{}, domain.ErrRoomFull
	default:
		return domain.AuthContext{}, domain.ErrRoomNotFound
	}
}

// Authenticate checks that token is a participant of roomID. Membership is
// read from the store on every call.
func (s *Service) Authenticate(ctx context.Context, roomID, token string) (domain.AuthContext, error) {
	if roomID == "" || token == "" {
		return domain.AuthContext{}, domain.ErrUnauthorized
	}

	ok, err := s.store.IsParticipant(ctx, roomID, token)
	if err != nil {
		return domain.AuthContext{}, err
	}
	if !ok {
		return domain.AuthContext{}, domain.ErrUnauthorized
	}
	return domain.AuthContext{RoomID: roomID, Token: token}, nil
}

// GetRemainingTTL returns the room's remaining lifetime, 0 once it is gone.
func (s *Service) GetRemainingTTL(ctx context.Context, roomID string) (time.Duration, error) {
	return s.store.GetTTL(ctx, roomID)
}

// RefreshTTLOnActivity sets the message list expiry to the metadata expiry.
// It does nothing for a room that is already gone.
func (s *Service) RefreshTTLOnActivity(ctx context.Context, roomID string) error {
	remaining, err := s.store.GetTTL(ctx, roomID)
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return nil
	}
	return s.store.SetTTL(ctx, roomID, remaining)
}

// DestroyRoom notifies subscribers and then erases the room. Destroying a
// room that is already gone succeeds.
func (s *Service) DestroyRoom(ctx context.Context, auth domain.AuthContext) error {
	return s.destroy(ctx, auth.RoomID, domain.ReasonDestroyed)
}

// HandleExpired runs when the store expires a room's metadata.
func (s *Service) HandleExpired(ctx context.Context, roomID string) error {
	return s.destroy(ctx, roomID, domain.ReasonExpired)
}

func (s *Service) destroy(ctx context.Context, roomID string, reason domain.DestroyReason) error {
	s.publish(ctx, roomID, domain.EventChatDestroy, domain.DestroyNotice{IsDestroyed: true, Reason: reason})

	if err := s.store.DeleteRoomData(ctx, roomID); err != nil {
		return err
	}
	s.logger.Info("Room destroyed", "roomID", roomID, "reason", reason)
	return nil
}

// ListMessages returns the room history in append order. Author tokens are
// only kept on the caller's own messages.
func (s *Service) ListMessages(ctx context.Context, auth domain.AuthContext) ([]domain.Message, error) {
	messages, err := s.store.ListMessages(ctx, auth.RoomID)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(m domain.Message, _ int) domain.Message {
		if m.Token == auth.Token {
			return m
		}
		return m.Masked()
	}), nil
}

// SendMessage validates and appends a message, notifies subscribers and
// re-aligns the room expiry.
func (s *Service) SendMessage(ctx context.Context, auth domain.AuthContext, sender, text string) (domain.Message, error) {
	if err := s.validateMessage(sender, text); err != nil {
		return domain.Message{}, err
	}

	exists, err := s.store.Exists(ctx, auth.RoomID)
	if err != nil {
		return domain.Message{}, err
	}
	if !exists {
		return domain.Message{}, domain.ErrRoomNotFound
	}

	msg := domain.Message{
		ID:        s.newID(),
		Sender:    sender,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
		RoomID:    auth.RoomID,
		Token:     auth.Token,
	}

	// The append repeats the existence check atomically so a room destroyed
	// in between is never recreated.
	ok, err := s.store.AppendMessage(ctx, auth.RoomID, msg)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, domain.ErrRoomNotFound
	}

	s.publish(ctx, auth.RoomID, domain.EventChatMessage, msg.Masked())

	if err := s.RefreshTTLOnActivity(ctx, auth.RoomID); err != nil {
		s.logger.Warn("Failed to refresh room TTL", "roomID", auth.RoomID, "error", err)
	}

	return msg, nil
}

// RoomInfo describes the caller's room.
func (s *Service) RoomInfo(ctx context.Context, auth domain.AuthContext) (Info, error) {
	createdAt, err := s.store.CreatedAt(ctx, auth.RoomID)
	if err != nil {
		return Info{}, err
	}
	participants, err := s.store.Participants(ctx, auth.RoomID)
	if err != nil {
		return Info{}, err
	}
	ttl, err := s.store.GetTTL(ctx, auth.RoomID)
	if err != nil {
		return Info{}, err
	}
	return Info{
		RoomID:       auth.RoomID,
		CreatedAt:    createdAt,
		TTL:          ttl,
		Participants: participants,
		Capacity:     s.config.Capacity,
	}, nil
}

// validateMessage rejects empty and oversized fields before any write.
// Lengths count runes.
func (s *Service) validateMessage(sender, text string) error {
	if err := s.validateField("sender", sender, s.config.MaxSenderLength); err != nil {
		return err
	}
	return s.validateField("text", text, s.config.MaxTextLength)
}

func (s *Service) validateField(field, value string, maxLen int) error {
	if err := s.validate.Var(value, "required"); err != nil {
		return fmt.Errorf("%w: %s is required and must not be empty", domain.ErrValidation, field)
	}
	if err := s.validate.Var(value, fmt.Sprintf("max=%d", maxLen)); err != nil {
		return fmt.Errorf("%w: %s must be at most %d characters", domain.ErrValidation, field, maxLen)
	}
	return nil
}

// publish is best effort: subscribers reconcile through the read operations.
func (s *Service) publish(ctx context.Context, roomID, name string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, roomID, name, payload); err != nil {
		s.logger.Warn("Failed to publish room event", "roomID", roomID, "event", name, "error", err)
	}
}

// IsClientError reports whether err is caused by the caller rather than the infrastructure.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrRoomNotFound) ||
		errors.Is(err, domain.ErrRoomFull) ||
		errors.Is(err, domain.ErrValidation)
}
