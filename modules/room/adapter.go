package room

import (
	"context"
	"encoding/json"
	"strings"

	domain "github.com/example/private-chat/domain/room"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RoomPort defines the room operations available to other modules.
type RoomPort interface {
	CreateRoom(ctx context.Context) (*CreateRoomResponse, error)
	JoinRoom(ctx context.Context, roomID, token string) (domain.AuthContext, error)
	Authenticate(ctx context.Context, roomID, token string) (domain.AuthContext, error)
	GetTTL(ctx context.Context, auth domain.AuthContext) (int64, error)
	DestroyRoom(ctx context.Context, auth domain.AuthContext) error
	ListMessages(ctx context.Context, auth domain.AuthContext) ([]domain.Message, error)
	SendMessage(ctx context.Context, auth domain.AuthContext, sender, text string) (domain.Message, error)
	RoomInfo(ctx context.Context, auth domain.AuthContext) (*RoomInfoResponse, error)
}

// RoomAdapter implements RoomPort using the service container.
type RoomAdapter struct {
	container mono.ServiceContainer
}

var _ RoomPort = (*RoomAdapter)(nil)

// NewRoomAdapter creates a new RoomAdapter.
func NewRoomAdapter(container mono.ServiceContainer) *RoomAdapter {
	return &RoomAdapter{container: container}
}

// CreateRoom creates a new room.
func (a *RoomAdapter) CreateRoom(ctx context.Context) (*CreateRoomResponse, error) {
	var resp CreateRoomResponse
	if err := call(ctx, a.container, "create-room", &CreateRoomRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JoinRoom admits the caller and returns its participant token.
func (a *RoomAdapter) JoinRoom(ctx context.Context, roomID, token string) (domain.AuthContext, error) {
	var resp AuthResponse
	if err := call(ctx, a.container, "join-room", &JoinRoomRequest{RoomID: roomID, Token: token}, &resp); err != nil {
		return domain.AuthContext{}, err
	}
	return domain.AuthContext{RoomID: resp.RoomID, Token: resp.Token}, nil
}

// Authenticate verifies a participant token.
func (a *RoomAdapter) Authenticate(ctx context.Context, roomID, token string) (domain.AuthContext, error) {
	var resp AuthResponse
	if err := call(ctx, a.container, "authenticate", &AuthRequest{RoomID: roomID, Token: token}, &resp); err != nil {
		return domain.AuthContext{}, err
	}
	return domain.AuthContext{RoomID: resp.RoomID, Token: resp.Token}, nil
}

// GetTTL returns the remaining lifetime of the room in seconds.
func (a *RoomAdapter) GetTTL(ctx context.Context, auth domain.AuthContext) (int64, error) {
	var resp TTLResponse
	if err := call(ctx, a.container, "get-ttl", toAuthRequest(auth), &resp); err != nil {
		return 0, err
	}
	return resp.TTL, nil
}

// DestroyRoom destroys the room.
func (a *RoomAdapter) DestroyRoom(ctx context.Context, auth domain.AuthContext) error {
	var resp AckResponse
	return call(ctx, a.container, "destroy-room", toAuthRequest(auth), &resp)
}

// ListMessages returns the room history.
func (a *RoomAdapter) ListMessages(ctx context.Context, auth domain.AuthContext) ([]domain.Message, error) {
	var resp ListMessagesResponse
	if err := call(ctx, a.container, "list-messages", toAuthRequest(auth), &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessage posts a message to the room.
func (a *RoomAdapter) SendMessage(ctx context.Context, auth domain.AuthContext, sender, text string) (domain.Message, error) {
	req := SendMessageRequest{RoomID: auth.RoomID, Token: auth.Token, Sender: sender, Text: text}
	var resp MessageResponse
	if err := call(ctx, a.container, "send-message", &req, &resp); err != nil {
		return domain.Message{}, err
	}
	return resp.Message, nil
}

// RoomInfo describes the room.
func (a *RoomAdapter) RoomInfo(ctx context.Context, auth domain.AuthContext) (*RoomInfoResponse, error) {
	var resp RoomInfoResponse
	if err := call(ctx, a.container, "room-info", toAuthRequest(auth), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// call performs one typed request-reply round trip and restores domain errors.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return mapServiceError(err)
	}
	return nil
}

func toAuthRequest(auth domain.AuthContext) *AuthRequest {
	return &AuthRequest{RoomID: auth.RoomID, Token: auth.Token}
}

// mapServiceError maps errors returned across the service boundary back to
// domain sentinels. Error types do not survive the transport, only messages.
func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, domain.ErrUnauthorized.Error()):
		return domain.ErrUnauthorized
	case strings.Contains(errMsg, domain.ErrRoomNotFound.Error()):
		return domain.ErrRoomNotFound
	case strings.Contains(errMsg, domain.ErrRoomFull.Error()):
		return domain.ErrRoomFull
	case strings.Contains(errMsg, domain.ErrValidation.Error()):
		return wrapMessage(domain.ErrValidation, err)
	case strings.Contains(errMsg, domain.ErrUnavailable.Error()):
		return wrapMessage(domain.ErrUnavailable, err)
	}
	return err
}

// wrapMessage keeps the remote detail while restoring the sentinel.
func wrapMessage(sentinel, err error) error {
	return &remoteError{sentinel: sentinel, msg: err.Error()}
}

type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }
