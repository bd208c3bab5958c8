package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notesync/internal/note/repository"
	"notesync/internal/note/service"
	"notesync/middleware"
	"notesync/socket"
	"notesync/store"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type app struct {
	server *httptest.Server
	hub    *socket.Hub
	token  string
}

func newApp(t *testing.T, opts Options, delivery socket.DeliveryScope) *app {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	repo := repository.NewGormNoteRepository(db)
	require.NoError(t, repo.Migrate())

	hub := socket.NewHub()
	svc := service.NewNoteService(repo, hub, delivery)
	hub.SetApplier(svc)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(Setup(hub, svc, opts))
	t.Cleanup(func() {
		server.Close()
		cancel()
		sqlDB.Close()
	})
	return &app{server: server, hub: hub}
}

func (a *app) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (a *app) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws"
	if a.token != "" {
		url += "?token=" + a.token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// wait for the welcome so the session is registered
	msg := read(t, conn)
	require.Equal(t, socket.ConnectedEvent, msg.Event)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) socket.Message {
	t.Helper()
	var msg socket.Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func silent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg socket.Message
	err := conn.ReadJSON(&msg)
	assert.Error(t, err, "unexpected %s event", msg.Event)
}

func decodeNote(t *testing.T, raw []byte) store.Note {
	t.Helper()
	var n store.Note
	require.NoError(t, json.Unmarshal(raw, &n))
	return n
}

func TestNoteLifecycleScenario(t *testing.T) {
	a := newApp(t, Options{}, socket.DeliverGlobal)

	resp, body := a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "T", "content": "C"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeNote(t, body)
	require.NotEmpty(t, created.ID)

	resp, body = a.do(t, http.MethodGet, "/api/notes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeNote(t, body)
	assert.Equal(t, "T", got.Title)
	assert.Equal(t, "C", got.Content)

	time.Sleep(5 * time.Millisecond)
	resp, body = a.do(t, http.MethodPut, "/api/notes/"+created.ID, map[string]string{"title": "T2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeNote(t, body)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "C", updated.Content)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	resp, body = a.do(t, http.MethodDelete, "/api/notes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Note deleted successfully"}`, string(body))

	resp, body = a.do(t, http.MethodGet, "/api/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Note not found"}`, string(body))

	resp, _ = a.do(t, http.MethodDelete, "/api/notes/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = a.do(t, http.MethodPut, "/api/notes/"+created.ID, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidBodies(t *testing.T) {
	a := newApp(t, Options{}, socket.DeliverGlobal)

	resp, body := a.do(t, http.MethodPost, "/api/notes", map[string]any{"title": 42})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Malformed JSON body"}`, string(body))

	resp, _ = a.do(t, http.MethodPost, "/api/notes", map[string]any{"colour": "red"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": strings.Repeat("x", 300)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/notes", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "an empty body creates a default note")
}

func TestCreateFansOutToEveryClient(t *testing.T) {
	a := newApp(t, Options{}, socket.DeliverGlobal)
	clientA := a.dial(t)
	clientB := a.dial(t)

	resp, body := a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "shared"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	for _, conn := range []*websocket.Conn{clientA, clientB} {
		msg := read(t, conn)
		assert.Equal(t, socket.NoteCreatedEvent, msg.Event)
		assert.JSONEq(t, string(body), string(msg.Data))
	}
	silent(t, clientB)
}

func TestChannelUpdateSkipsSender(t *testing.T) {
	a := newApp(t, Options{}, socket.DeliverGlobal)
	resp, body := a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "T"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeNote(t, body)

	clientA := a.dial(t)
	clientB := a.dial(t)
	require.NoError(t, clientA.WriteJSON(map[string]any{
		"event": socket.NoteUpdateEvent,
		"data":  map[string]string{"id": created.ID, "content": "typed on A"},
	}))

	msg := read(t, clientB)
	assert.Equal(t, socket.NoteUpdatedEvent, msg.Event)
	assert.Equal(t, "typed on A", decodeNote(t, msg.Data).Content)
	silent(t, clientA)

	_, body = a.do(t, http.MethodGet, "/api/notes/"+created.ID, nil)
	assert.Equal(t, "typed on A", decodeNote(t, body).Content)
}

func TestRoomDeliveryScope(t *testing.T) {
	a := newApp(t, Options{}, socket.DeliverRoom)
	_, body := a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "T"})
	created := decodeNote(t, body)

	member := a.dial(t)
	outsider := a.dial(t)
	require.NoError(t, member.WriteJSON(map[string]any{"event": socket.JoinNoteEvent, "data": created.ID}))
	require.Eventually(t, func() bool {
		return len(a.hub.Members(socket.RoomFor(created.ID))) == 1
	}, time.Second, 10*time.Millisecond)

	resp, _ := a.do(t, http.MethodPut, "/api/notes/"+created.ID, map[string]bool{"pinned": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msg := read(t, member)
	assert.Equal(t, socket.NoteUpdatedEvent, msg.Event)
	assert.True(t, decodeNote(t, msg.Data).Pinned)
	silent(t, outsider)
}

func TestAuthenticatedVariantScopesByOwner(t *testing.T) {
	secret := []byte("test-secret")
	a := newApp(t, Options{Auth: middleware.AuthConfig{Required: true, Secret: secret}}, socket.DeliverGlobal)

	resp, _ := a.do(t, http.MethodGet, "/api/notes", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	sign := func(sub string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString(secret)
		require.NoError(t, err)
		return s
	}

	a.token = sign("alice")
	_, body := a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "plain"})
	plain := decodeNote(t, body)
	assert.Equal(t, "alice", plain.OwnerID)
	time.Sleep(5 * time.Millisecond)
	_, body = a.do(t, http.MethodPost, "/api/notes", map[string]any{"title": "pinned", "pinned": true})
	pinned := decodeNote(t, body)
	time.Sleep(5 * time.Millisecond)
	_, body = a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "newest"})
	newest := decodeNote(t, body)

	resp, body = a.do(t, http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var notes []store.Note
	require.NoError(t, json.Unmarshal(body, &notes))
	require.Len(t, notes, 3)
	assert.Equal(t, []string{pinned.ID, newest.ID, plain.ID}, []string{notes[0].ID, notes[1].ID, notes[2].ID})

	a.token = sign("bob")
	resp, body = a.do(t, http.MethodGet, "/api/notes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
	resp, _ = a.do(t, http.MethodDelete, "/api/notes/"+plain.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChannelUpdateIsScopedToOwner(t *testing.T) {
	secret := []byte("test-secret")
	a := newApp(t, Options{Auth: middleware.AuthConfig{Required: true, Secret: secret}}, socket.DeliverGlobal)
	sign := func(sub string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString(secret)
		require.NoError(t, err)
		return s
	}

	a.token = sign("alice")
	_, body := a.do(t, http.MethodPost, "/api/notes", map[string]string{"title": "T", "content": "mine"})
	created := decodeNote(t, body)
	watcher := a.dial(t)
	editor := a.dial(t)

	a.token = sign("bob")
	intruder := a.dial(t)
	require.NoError(t, intruder.WriteJSON(map[string]any{
		"event": socket.NoteUpdateEvent,
		"data":  map[string]string{"id": created.ID, "content": "not yours"},
	}))
	silent(t, watcher)
	silent(t, editor)

	a.token = sign("alice")
	_, body = a.do(t, http.MethodGet, "/api/notes/"+created.ID, nil)
	assert.Equal(t, "mine", decodeNote(t, body).Content)

	// the owner's own session still gets through
	require.NoError(t, editor.WriteJSON(map[string]any{
		"event": socket.NoteUpdateEvent,
		"data":  map[string]string{"id": created.ID, "content": "still mine"},
	}))
	msg := read(t, watcher)
	assert.Equal(t, socket.NoteUpdatedEvent, msg.Event)
	assert.Equal(t, "still mine", decodeNote(t, msg.Data).Content)
}

func TestHealth(t *testing.T) {
	a := newApp(t, Options{}, socket.DeliverGlobal)
	a.dial(t)

	resp, body := a.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, string(body))
}
