package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"notesync/internal/note/model"
	"notesync/pkg/logger"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 256

	// applyTimeout bounds a store write triggered from the channel. It is not
	// tied to the connection so a write survives the sender disconnecting.
	applyTimeout = 10 * time.Second
)

var validate = validator.New()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers connect from the frontend's own origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one channel session.
type Client struct {
	Hub    *Hub
	Conn   *websocket.Conn
	ID     string
	UserID string
	Send   chan []byte

	// rooms is owned by the hub's Run goroutine.
	rooms map[string]bool
}

// ServeWs upgrades the request and starts the session's pumps. userID is empty
// when the channel is not access-gated.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:    hub,
		Conn:   conn,
		ID:     uuid.NewString(),
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]bool),
	}

	if !hub.enter(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("Session %s read error: %v", c.ID, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message from %s: %v", c.ID, err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg Message) {
	switch msg.Event {
	case NoteUpdateEvent:
		var upd model.SyncUpdate
		if err := json.Unmarshal(msg.Data, &upd); err != nil {
			logger.Sugar.Warnf("Session %s sent an invalid noteUpdate: %v", c.ID, err)
			return
		}
		if err := validate.Struct(upd); err != nil {
			logger.Sugar.Warnf("Session %s sent an invalid noteUpdate: %v", c.ID, err)
			return
		}
		if c.Hub.applier == nil {
			logger.Sugar.Warn("noteUpdate received but no applier is configured")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
		defer cancel()
		if _, err := c.Hub.applier.ApplyUpdate(ctx, c.UserID, upd.ID, upd.NotePatch, c.ID); err != nil {
			logger.Sugar.Errorf("Error applying noteUpdate for %s from session %s: %v", upd.ID, c.ID, err)
		}

	case JoinNoteEvent, LeaveNoteEvent:
		var noteID string
		if err := json.Unmarshal(msg.Data, &noteID); err != nil || noteID == "" {
			logger.Sugar.Warnf("Session %s sent an invalid %s: %v", c.ID, msg.Event, err)
			return
		}
		c.Hub.requestMembership(c, RoomFor(noteID), msg.Event == JoinNoteEvent)

	default:
		logger.Sugar.Warnf("Session %s sent unknown event %q", c.ID, msg.Event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
