// Package broadcast fans room events out to realtime subscribers.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// subscriberBuffer is the number of events a slow subscriber may lag behind
// before further events are dropped for it.
const subscriberBuffer = 64

// Event is a room event delivered to subscribers.
type Event struct {
	Name   string          `json:"event"`
	RoomID string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`
}

// Subscription is a live stream of events for one room.
type Subscription struct {
	ID     string
	RoomID string

	names  map[string]bool
	events chan Event
	hub    *Hub
	once   sync.Once
}

// Events returns the event stream. It is closed when the subscription or the hub stops.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close cancels the subscription.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

func (s *Subscription) wants(name string) bool {
	return len(s.names) == 0 || s.names[name]
}

// Hub manages room subscriptions and event delivery. A single loop delivers
// every event, so each subscriber sees a room's events in publish order.
type Hub struct {
	subscriptions map[string]*Subscription   // subscriptionID -> Subscription
	rooms         map[string]map[string]bool // roomID -> set of subscriptionIDs
	register      chan *Subscription
	unregister    chan *Subscription
	broadcast     chan Event
	done          chan struct{}
	mu            sync.RWMutex
	dropped       atomic.Uint64
	logger        types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		subscriptions: make(map[string]*Subscription),
		rooms:         make(map[string]map[string]bool),
		register:      make(chan *Subscription),
		unregister:    make(chan *Subscription),
		broadcast:     make(chan Event, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down", "subscriptions", h.SubscriptionCount())
			h.closeAll()
			close(h.done)
			return
		case sub := <-h.register:
			h.handleRegister(sub)
		case sub := <-h.unregister:
			h.handleUnregister(sub)
		case event := <-h.broadcast:
			h.handleBroadcast(event)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Subscribe opens a stream of events for roomID. With no names every event
// of the room is delivered. Events published before Subscribe returns are
// never replayed.
func (h *Hub) Subscribe(roomID string, names ...string) *Subscription {
	sub := &Subscription{
		ID:     uuid.New().String(),
		RoomID: roomID,
		names:  make(map[string]bool, len(names)),
		events: make(chan Event, subscriberBuffer),
		hub:    h,
	}
	for _, n := range names {
		sub.names[n] = true
	}

	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.events)
	}
	return sub
}

// Publish queues an event for every current subscriber of roomID.
func (h *Hub) Publish(roomID, name string, data json.RawMessage) {
	select {
	case h.broadcast <- Event{Name: name, RoomID: roomID, Data: data}:
	case <-h.done:
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subscriptions {
		close(sub.events)
	}
	h.subscriptions = make(map[string]*Subscription)
	h.rooms = make(map[string]map[string]bool)
}

func (h *Hub) handleRegister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.subscriptions[sub.ID] = sub
	if h.rooms[sub.RoomID] == nil {
		h.rooms[sub.RoomID] = make(map[string]bool)
	}
	h.rooms[sub.RoomID][sub.ID] = true
	h.logger.Debug("Subscription registered", "subscriptionID", sub.ID, "roomID", sub.RoomID)
}

func (h *Hub) handleUnregister(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscriptions[sub.ID]; !ok {
		return
	}
	delete(h.subscriptions, sub.ID)
	close(sub.events)

	if ids := h.rooms[sub.RoomID]; ids != nil {
		delete(ids, sub.ID)
		if len(ids) == 0 {
			delete(h.rooms, sub.RoomID)
		}
	}
	h.logger.Debug("Subscription closed", "subscriptionID", sub.ID, "roomID", sub.RoomID)
}

func (h *Hub) handleBroadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id := range h.rooms[event.RoomID] {
		sub := h.subscriptions[id]
		if sub == nil || !sub.wants(event.Name) {
			continue
		}
		select {
		case sub.events <- event:
		default:
			h.dropped.Add(1)
			h.logger.Warn("Subscriber lagging, event dropped",
				"subscriptionID", sub.ID, "roomID", event.RoomID, "event", event.Name)
		}
	}
}

// SubscriptionCount returns the number of open subscriptions.
func (h *Hub) SubscriptionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions)
}

// RoomSubscriptionCount returns the number of open subscriptions for a room.
func (h *Hub) RoomSubscriptionCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Dropped returns how many events were dropped for lagging subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
