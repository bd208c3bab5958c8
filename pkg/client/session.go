package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"notesync/pkg/logger"
	"notesync/socket"
	"notesync/store"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Event is a server notification received on the channel. Note is set for
// created and updated events, DeletedID for deletions.
type Event struct {
	Name      string
	Note      *store.Note
	DeletedID string
}

// Session is one connection to the synchronization channel.
type Session struct {
	ID string

	conn      *websocket.Conn
	events    chan Event
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the channel at serverURL (http or ws scheme) and waits for the
// session id.
func Dial(ctx context.Context, serverURL, token string) (*Session, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, &APIError{Status: resp.StatusCode, Message: "Unauthorized"}
		}
		return nil, fmt.Errorf("dialing channel: %w", err)
	}

	var welcome socket.Message
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading welcome: %w", err)
	}
	var p socket.ConnectedPayload
	if welcome.Event != socket.ConnectedEvent || json.Unmarshal(welcome.Data, &p) != nil {
		conn.Close()
		return nil, errors.New("channel did not send a session id")
	}

	s := &Session{ID: p.SessionID, conn: conn, events: make(chan Event, 64), done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

// Events yields server events until the connection closes.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) SendUpdate(id string, p Patch) error {
	return s.send(socket.NoteUpdateEvent, struct {
		ID string `json:"id"`
		Patch
	}{ID: id, Patch: p})
}

func (s *Session) Join(noteID string) error {
	return s.send(socket.JoinNoteEvent, noteID)
}

func (s *Session) Leave(noteID string) error {
	return s.send(socket.LeaveNoteEvent, noteID)
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

func (s *Session) send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(socket.Message{Event: event, Data: raw})
}

func (s *Session) readLoop() {
	defer close(s.events)
	for {
		var msg socket.Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Sugar.Debugf("Channel read ended: %v", err)
			}
			return
		}

		ev, err := decodeEvent(msg)
		if err != nil {
			logger.Sugar.Warnf("Dropping %s event: %v", msg.Event, err)
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func decodeEvent(msg socket.Message) (Event, error) {
	ev := Event{Name: msg.Event}
	switch msg.Event {
	case socket.NoteCreatedEvent, socket.NoteUpdatedEvent:
		var n store.Note
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			return ev, err
		}
		ev.Note = &n
	case socket.NoteDeletedEvent:
		var p socket.DeletedPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return ev, err
		}
		ev.DeletedID = p.ID
	default:
		return ev, fmt.Errorf("unknown event")
	}
	return ev, nil
}
