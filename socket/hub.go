package socket

import (
	"context"
	"notesync/internal/note/model"
	"notesync/pkg/logger"
	"notesync/store"
	"sync"
)

// UpdateApplier applies a noteUpdate received on the channel. origin is the
// session id of the sender so the resulting event can skip it.
type UpdateApplier interface {
	ApplyUpdate(ctx context.Context, ownerID, id string, patch model.NotePatch, origin string) (*store.Note, error)
}

type envelope struct {
	event  Event
	target Target
}

type membership struct {
	client *Client
	room   string
	join   bool
}

// Hub is the connection registry. All mutation of sessions and rooms happens
// on the Run goroutine; mu only guards readers outside it.
type Hub struct {
	sessions map[string]*Client
	rooms    map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	membership chan membership
	done       chan struct{}

	applier UpdateApplier
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 64),
		membership: make(chan membership),
		done:       make(chan struct{}),
	}
}

// SetApplier wires the handler for inbound noteUpdate messages. It must be
// called before Run.
func (h *Hub) SetApplier(a UpdateApplier) {
	h.applier = a
}

// Run processes registrations, membership changes and broadcasts until ctx is
// cancelled. On exit every session is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.sessions[client.ID] = client
			h.mu.Unlock()

			// The session id is the first thing a client hears.
			welcome, err := Event{Name: ConnectedEvent, Data: ConnectedPayload{SessionID: client.ID}}.encode()
			if err == nil {
				client.Send <- welcome
			}
			logger.Sugar.Infof("Session %s connected (user %q)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.remove(client)

		case m := <-h.membership:
			h.changeMembership(m)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// Publish queues an event for delivery. It returns without sending once the
// hub has stopped.
func (h *Hub) Publish(event Event, target Target) {
	select {
	case h.broadcast <- envelope{event: event, target: target}:
	case <-h.done:
	}
}

// Members lists the session ids currently in room.
func (h *Hub) Members(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		ids = append(ids, client.ID)
	}
	return ids
}

// SessionCount is the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) enter(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) requestMembership(c *Client, room string, join bool) {
	select {
	case h.membership <- membership{client: c, room: room, join: join}:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[client.ID]; !ok {
		return
	}
	delete(h.sessions, client.ID)
	for room := range client.rooms {
		h.dropMember(room, client)
	}
	close(client.Send)
	logger.Sugar.Infof("Session %s disconnected", client.ID)
}

func (h *Hub) changeMembership(m membership) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[m.client.ID]; !ok {
		return
	}
	if m.join {
		if h.rooms[m.room] == nil {
			h.rooms[m.room] = make(map[*Client]bool)
		}
		h.rooms[m.room][m.client] = true
		m.client.rooms[m.room] = true
		logger.Sugar.Debugf("Session %s joined room %s", m.client.ID, m.room)
		return
	}
	h.dropMember(m.room, m.client)
	logger.Sugar.Debugf("Session %s left room %s", m.client.ID, m.room)
}

// dropMember requires h.mu held.
func (h *Hub) dropMember(room string, client *Client) {
	delete(client.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) deliver(env envelope) {
	payload, err := env.event.encode()
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s event: %v", env.event.Name, err)
		return
	}

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.sessions))
	if env.target.Room == "" {
		for _, client := range h.sessions {
			recipients = append(recipients, client)
		}
	} else {
		for client := range h.rooms[env.target.Room] {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		if client.ID == env.target.Except {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			// A full buffer means the client is lagging; drop it rather than
			// block every other session.
			logger.Sugar.Warnf("Session %s's send buffer is full. Disconnecting.", client.ID)
			h.remove(client)
		}
	}

	// A deleted note's room has nothing left to follow.
	if env.event.Name == NoteDeletedEvent {
		if p, ok := env.event.Data.(DeletedPayload); ok {
			h.closeRoom(RoomFor(p.ID))
		}
	}
}

func (h *Hub) closeRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[room] {
		delete(client.rooms, room)
	}
	delete(h.rooms, room)
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.sessions {
		close(client.Send)
		delete(h.sessions, id)
	}
	h.rooms = make(map[string]map[*Client]bool)
}
