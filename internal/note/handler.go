package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"notesync/internal/note/model"
	"notesync/internal/note/service"
	"notesync/middleware"
	"notesync/pkg/apperr"
	"notesync/pkg/logger"
	"time"
)

// maxBodyBytes caps request bodies; markdown notes are text.
const maxBodyBytes = 4 << 20

type NoteHandler struct {
	Service *service.NoteService
	// Sessions reports connected channel sessions for the health check.
	Sessions func() int
}

func NewNoteHandler(service *service.NoteService, sessions func() int) *NoteHandler {
	return &NoteHandler{Service: service, Sessions: sessions}
}

func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Service.List(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.Service.Get(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req model.CreateNoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.Service.Create(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (h *NoteHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var patch model.NotePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.Service.ApplyUpdate(r.Context(), middleware.UserID(r.Context()), r.PathValue("id"), patch, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), middleware.UserID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.DeleteNoteResponse{Message: "Note deleted successfully"})
}

func (h *NoteHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := model.HealthResponse{Status: "ok"}
	if h.Sessions != nil {
		resp.Sessions = h.Sessions()
	}
	if err := h.Service.Ping(ctx); err != nil {
		logger.Sugar.Errorf("Health check failed: %v", err)
		resp.Status = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched,
// matching the optional fields of every payload.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &apperr.Error{Kind: apperr.Invalid, Message: apperr.ErrMalformed.Message, Err: err}
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae := apperr.From(err)
	if ae.Kind == apperr.Internal {
		logger.Sugar.Errorf("%s %s failed: %v", r.Method, r.URL.Path, ae)
	}
	writeJSON(w, ae.Status(), ae.Body())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode response: %v", err)
	}
}
