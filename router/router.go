package router

import (
	"net/http"
	noteHandler "notesync/internal/note"
	"notesync/internal/note/service"
	"notesync/middleware"
	"notesync/socket"
)

type Options struct {
	Auth       middleware.AuthConfig
	CORSOrigin string
}

func Setup(hub *socket.Hub, noteService *service.NoteService, opts Options) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.NewAuthMiddleware(opts.Auth)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.UserID(r.Context()))
	})
	mux.Handle("GET /ws", auth(wsHandler))

	// REST API
	notes := noteHandler.NewNoteHandler(noteService, hub.SessionCount)

	mux.Handle("GET /api/notes", auth(http.HandlerFunc(notes.ListNotes)))
	mux.Handle("POST /api/notes", auth(http.HandlerFunc(notes.CreateNote)))
	mux.Handle("GET /api/notes/{id}", auth(http.HandlerFunc(notes.GetNote)))
	mux.Handle("PUT /api/notes/{id}", auth(http.HandlerFunc(notes.UpdateNote)))
	mux.Handle("DELETE /api/notes/{id}", auth(http.HandlerFunc(notes.DeleteNote)))

	mux.HandleFunc("GET /health", notes.Health)

	return middleware.RequestLogger(middleware.CORSMiddleware(opts.CORSOrigin)(mux))
}
