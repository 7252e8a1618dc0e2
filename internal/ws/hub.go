package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	log "github.com/sirupsen/logrus"
)

// Event types pushed to UI clients.
const (
	EventOrderSnapshot   = "order.snapshot"
	EventStreamError     = "order.stream_error"
	EventRecoveryResumed = "recovery.resumed"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent marshals v as the payload of an event of type typ.
func NewEvent(typ string, v interface{}) (Event, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{Type: typ, Payload: payload}, nil
}

// Subscriber opens the upstream snapshot stream for one order.
// Satisfied by *backend.Subscriber.
type Subscriber interface {
	Subscribe(ctx context.Context, orderID string) (<-chan snapshot.Update, error)
}

// ClientObserver tracks connected clients. Satisfied by *metrics.Recorder.
type ClientObserver interface {
	ClientConnected()
	ClientDisconnected()
}

// roomEvent routes an event to one order room, or to every room when all is set.
type roomEvent struct {
	orderID string
	all     bool
	event   Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Each room is one order; while a room has clients the hub relays the
// backend snapshot stream for that order into it.
type Hub struct {
	// Registered clients by order ID
	rooms map[string]map[*Client]bool

	// Cancels the upstream relay of each occupied room
	relays map[string]context.CancelFunc

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent
	done       chan struct{}

	subscriber Subscriber
	observer   ClientObserver
	logger     *log.Entry

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub. subscriber and observer may be nil.
func NewHub(subscriber Subscriber, observer ClientObserver, logger *log.Entry) *Hub {
	if logger == nil {
		logger = log.New().WithField("component", "ws")
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		relays:     make(map[string]context.CancelFunc),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
		subscriber: subscriber,
		observer:   observer,
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done. All relays are
// cancelled on return.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for id, cancel := range h.relays {
			cancel()
			delete(h.relays, id)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.orderID] == nil {
				h.rooms[client.orderID] = make(map[*Client]bool)
				h.startRelay(ctx, client)
			}
			h.rooms[client.orderID][client] = true
			h.mu.Unlock()
			if h.observer != nil {
				h.observer.ClientConnected()
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.orderID]; ok {
				if _, exists := clients[client]; exists {
					h.drop(client)
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(ev.event)
			if err != nil {
				h.logger.WithError(err).WithField("type", ev.event.Type).Error("failed to encode event")
				continue
			}

			h.mu.Lock()
			for orderID, clients := range h.rooms {
				if !ev.all && orderID != ev.orderID {
					continue
				}
				for client := range clients {
					select {
					case client.send <- message:
					default:
						// Client's send buffer is full, close and unregister
						h.drop(client)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes client from its room. Callers hold h.mu.
func (h *Hub) drop(client *Client) {
	clients := h.rooms[client.orderID]
	delete(clients, client)
	close(client.send)
	if h.observer != nil {
		h.observer.ClientDisconnected()
	}

	// Clean up empty rooms and stop their relay
	if len(clients) == 0 {
		delete(h.rooms, client.orderID)
		if cancel, ok := h.relays[client.orderID]; ok {
			cancel()
			delete(h.relays, client.orderID)
		}
	}
}

// startRelay subscribes to the backend stream for the client's order using
// the client's credentials. Callers hold h.mu.
func (h *Hub) startRelay(ctx context.Context, client *Client) {
	if h.subscriber == nil {
		return
	}
	relayCtx, cancel := context.WithCancel(session.NewContext(ctx, client.session))
	h.relays[client.orderID] = cancel
	go h.relay(relayCtx, client.orderID)
}

func (h *Hub) relay(ctx context.Context, orderID string) {
	entry := h.logger.WithField("order_id", orderID)

	updates, err := h.subscriber.Subscribe(ctx, orderID)
	if err != nil {
		entry.WithError(err).Warn("order stream unavailable")
		h.publish(ctx, orderID, EventStreamError, map[string]string{"order_id": orderID, "error": err.Error()})
		return
	}
	entry.Debug("order stream relay started")

	for u := range updates {
		if u.Err != nil {
			h.publish(ctx, orderID, EventStreamError, map[string]string{"order_id": orderID, "error": u.Err.Error()})
			continue
		}
		h.publish(ctx, orderID, EventOrderSnapshot, u.Snapshot)
	}
	entry.Debug("order stream relay stopped")
}

func (h *Hub) publish(ctx context.Context, orderID, typ string, v interface{}) {
	if ctx.Err() != nil {
		return
	}
	ev, err := NewEvent(typ, v)
	if err != nil {
		h.logger.WithError(err).Error("failed to build event")
		return
	}
	h.Broadcast(orderID, ev)
}

// Broadcast sends an event to all clients watching orderID.
func (h *Hub) Broadcast(orderID string, event Event) {
	h.send(&roomEvent{orderID: orderID, event: event})
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(event Event) {
	h.send(&roomEvent{all: true, event: event})
}

func (h *Hub) send(ev *roomEvent) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Rooms returns the number of orders currently watched.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
