package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	domain "github.com/example/private-chat/domain/room"
	"github.com/example/private-chat/modules/store"
	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

func newTestModule(t *testing.T, s Store) *Module {
	t.Helper()
	m, err := NewModule(s, nil, DefaultConfig(), &mockLogger{})
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	return m
}

// joinedViaHandlers creates a room and admits one participant through the
// service handlers.
func joinedViaHandlers(t *testing.T, m *Module) AuthResponse {
	t.Helper()
	ctx := context.Background()

	created, err := m.handleCreateRoom(ctx, CreateRoomRequest{}, nil)
	if err != nil {
		t.Fatalf("handleCreateRoom() error = %v", err)
	}
	auth, err := m.handleJoinRoom(ctx, JoinRoomRequest{RoomID: created.RoomID}, nil)
	if err != nil {
		t.Fatalf("handleJoinRoom() error = %v", err)
	}
	return auth
}

func TestModule_HandlersRejectForgedToken(t *testing.T) {
	fs := newFakeStore()
	m := newTestModule(t, fs)
	ctx := context.Background()
	auth := joinedViaHandlers(t, m)

	forged := AuthRequest{RoomID: auth.RoomID, Token: "forged-token"}
	missing := AuthRequest{RoomID: auth.RoomID}

	calls := map[string]func(AuthRequest) error{
		"get-ttl": func(req AuthRequest) error {
			_, err := m.handleGetTTL(ctx, req, nil)
			return err
		},
		"destroy-room": func(req AuthRequest) error {
			_, err := m.handleDestroyRoom(ctx, req, nil)
			return err
		},
		"list-messages": func(req AuthRequest) error {
			_, err := m.handleListMessages(ctx, req, nil)
			return err
		},
		"send-message": func(req AuthRequest) error {
			_, err := m.handleSendMessage(ctx, SendMessageRequest{
				RoomID: req.RoomID, Token: req.Token, Sender: "mallory", Text: "hi",
			}, nil)
			return err
		},
		"room-info": func(req AuthRequest) error {
			_, err := m.handleRoomInfo(ctx, req, nil)
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(forged); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("forged token error = %v, want ErrUnauthorized", err)
			}
			if err := call(missing); !errors.Is(err, domain.ErrUnauthorized) {
				t.Errorf("missing token error = %v, want ErrUnauthorized", err)
			}
		})
	}

	if _, ok := fs.rooms[auth.RoomID]; !ok {
		t.Fatal("room destroyed by a forged token")
	}
	if n := len(fs.rooms[auth.RoomID].messages); n != 0 {
		t.Errorf("stored %d messages from a forged token", n)
	}
}

func TestModule_HandlersAfterDestroy(t *testing.T) {
	m := newTestModule(t, newFakeStore())
	ctx := context.Background()
	auth := joinedViaHandlers(t, m)
	req := AuthRequest{RoomID: auth.RoomID, Token: auth.Token}

	if _, err := m.handleSendMessage(ctx, SendMessageRequest{
		RoomID: auth.RoomID, Token: auth.Token, Sender: "alice", Text: "hello",
	}, nil); err != nil {
		t.Fatalf("handleSendMessage() error = %v", err)
	}

	list, err := m.handleListMessages(ctx, req, nil)
	if err != nil {
		t.Fatalf("handleListMessages() error = %v", err)
	}
	if len(list.Messages) != 1 || list.Messages[0].Token != auth.Token {
		t.Fatalf("messages = %+v, want one own message", list.Messages)
	}

	ack, err := m.handleDestroyRoom(ctx, req, nil)
	if err != nil || !ack.OK {
		t.Fatalf("handleDestroyRoom() = %+v, %v", ack, err)
	}

	if _, err := m.handleListMessages(ctx, req, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("list after destroy error = %v, want ErrUnauthorized", err)
	}
	if _, err := m.handleGetTTL(ctx, req, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("get-ttl after destroy error = %v, want ErrUnauthorized", err)
	}
	if _, err := m.handleSendMessage(ctx, SendMessageRequest{
		RoomID: auth.RoomID, Token: auth.Token, Sender: "alice", Text: "still here?",
	}, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("send after destroy error = %v, want ErrUnauthorized", err)
	}
}

func TestModule_GetTTLReadsConfiguredTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	m := newTestModule(t, store.NewRedisStore(client))
	ctx := context.Background()
	auth := joinedViaHandlers(t, m)

	// PTTL now reports 599999ms
	mr.FastForward(time.Millisecond)

	resp, err := m.handleGetTTL(ctx, AuthRequest{RoomID: auth.RoomID, Token: auth.Token}, nil)
	if err != nil {
		t.Fatalf("handleGetTTL() error = %v", err)
	}
	if resp.TTL != 600 {
		t.Errorf("TTL = %d, want 600", resp.TTL)
	}

	mr.FastForward(600 * time.Second)

	if _, err := m.handleGetTTL(ctx, AuthRequest{RoomID: auth.RoomID, Token: auth.Token}, nil); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("get-ttl after expiry error = %v, want ErrUnauthorized", err)
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{-2 * time.Second, 0},
		{0, 0},
		{400 * time.Millisecond, 0},
		{1500 * time.Millisecond, 2},
		{599999 * time.Millisecond, 600},
		{600 * time.Second, 600},
		{599400 * time.Millisecond, 599},
	}

	for _, tt := range tests {
		if got := seconds(tt.in); got != tt.want {
			t.Errorf("seconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// roomClient depends on the room module and calls it through a RoomAdapter,
// the same way the api module does.
type roomClient struct {
	rooms *RoomAdapter
}

func (c *roomClient) Name() string                  { return "room-client" }
func (c *roomClient) Start(_ context.Context) error { return nil }
func (c *roomClient) Stop(_ context.Context) error  { return nil }
func (c *roomClient) Dependencies() []string        { return []string{"room"} }

func (c *roomClient) SetDependencyServiceContainer(_ string, container mono.ServiceContainer) {
	c.rooms = NewRoomAdapter(container)
}

func startRoomApp(t *testing.T) *RoomAdapter {
	t.Helper()

	app, err := mono.NewMonoApplication(
		mono.WithLogLevel(mono.LogLevelError),
	)
	if err != nil {
		t.Fatalf("NewMonoApplication() error = %v", err)
	}

	roomModule := newTestModule(t, newFakeStore())
	client := &roomClient{}
	if err := app.Register(roomModule); err != nil {
		t.Fatalf("Register(room) error = %v", err)
	}
	if err := app.Register(client); err != nil {
		t.Fatalf("Register(room-client) error = %v", err)
	}

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		_ = app.Stop(context.Background())
	})

	if client.rooms == nil {
		t.Fatal("room container was not injected")
	}
	return client.rooms
}

func TestRoomAdapter_RoundTrip(t *testing.T) {
	rooms := startRoomApp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := rooms.CreateRoom(ctx)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if created.RoomID == "" || created.TTL != 600 || created.Capacity != domain.DefaultCapacity {
		t.Fatalf("CreateRoom() = %+v", created)
	}

	alice, err := rooms.JoinRoom(ctx, created.RoomID, "")
	if err != nil {
		t.Fatalf("JoinRoom(alice) error = %v", err)
	}
	bob, err := rooms.JoinRoom(ctx, created.RoomID, "")
	if err != nil {
		t.Fatalf("JoinRoom(bob) error = %v", err)
	}
	if _, err := rooms.JoinRoom(ctx, created.RoomID, ""); !errors.Is(err, domain.ErrRoomFull) {
		t.Errorf("third JoinRoom() error = %v, want ErrRoomFull", err)
	}

	if _, err := rooms.Authenticate(ctx, created.RoomID, alice.Token); err != nil {
		t.Errorf("Authenticate() error = %v", err)
	}

	ttl, err := rooms.GetTTL(ctx, alice)
	if err != nil || ttl != 600 {
		t.Errorf("GetTTL() = %d, %v, want 600", ttl, err)
	}

	sent, err := rooms.SendMessage(ctx, alice, "alice", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if sent.ID == "" || sent.Text != "hello" {
		t.Errorf("SendMessage() = %+v", sent)
	}

	if _, err := rooms.SendMessage(ctx, alice, "", "hello"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("SendMessage() with empty sender error = %v, want ErrValidation", err)
	}

	forged := domain.AuthContext{RoomID: created.RoomID, Token: "forged-token"}
	if _, err := rooms.SendMessage(ctx, forged, "mallory", "hi"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("SendMessage() with forged token error = %v, want ErrUnauthorized", err)
	}

	messages, err := rooms.ListMessages(ctx, bob)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(messages) != 1 || messages[0].Token != "" {
		t.Errorf("ListMessages() for bob = %+v, want one masked message", messages)
	}

	info, err := rooms.RoomInfo(ctx, bob)
	if err != nil || info.Participants != 2 {
		t.Errorf("RoomInfo() = %+v, %v", info, err)
	}

	if err := rooms.DestroyRoom(ctx, alice); err != nil {
		t.Fatalf("DestroyRoom() error = %v", err)
	}
	if _, err := rooms.ListMessages(ctx, bob); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("ListMessages() after destroy error = %v, want ErrUnauthorized", err)
	}
	if _, err := rooms.JoinRoom(ctx, created.RoomID, ""); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("JoinRoom() after destroy error = %v, want ErrRoomNotFound", err)
	}
}
