package service

import (
	"context"
	"errors"
	"notesync/internal/note/model"
	"notesync/pkg/apperr"
	"notesync/socket"
	"notesync/store"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// NoteRepository is the Note Store. An empty ownerID disables owner scoping.
type NoteRepository interface {
	List(ctx context.Context, ownerID string) ([]store.Note, error)
	Get(ctx context.Context, ownerID, id string) (*store.Note, error)
	Create(ctx context.Context, n *store.Note) error
	Update(ctx context.Context, ownerID, id string, patch model.NotePatch, now time.Time) (*store.Note, error)
	Delete(ctx context.Context, ownerID, id string) (*store.Note, error)
	Ping(ctx context.Context) error
}

// Publisher delivers channel events.
type Publisher interface {
	Publish(event socket.Event, target socket.Target)
}

type NoteService struct {
	Repo     NoteRepository
	Hub      Publisher
	Delivery socket.DeliveryScope

	validate *validator.Validate
	now      func() time.Time
}

func NewNoteService(repo NoteRepository, hub Publisher, delivery socket.DeliveryScope) *NoteService {
	if delivery == "" {
		delivery = socket.DeliverGlobal
	}
	return &NoteService{
		Repo:     repo,
		Hub:      hub,
		Delivery: delivery,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *NoteService) List(ctx context.Context, ownerID string) ([]store.Note, error) {
	notes, err := s.Repo.List(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, ownerID, id string) (*store.Note, error) {
	note, err := s.Repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, storeError(err)
	}
	return note, nil
}

// Create stores a new note, filling in the id and defaults, and announces it
// to every session.
func (s *NoteService) Create(ctx context.Context, ownerID string, req model.CreateNoteRequest) (*store.Note, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	now := s.now()
	note := &store.Note{
		ID:        req.ID,
		OwnerID:   ownerID,
		Title:     req.Title,
		Content:   req.Content,
		Pinned:    req.Pinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.Title == "" {
		note.Title = store.DefaultTitle
	}

	if err := s.Repo.Create(ctx, note); err != nil {
		return nil, storeError(err)
	}

	// No room can exist for a note that did not exist, so creation is always
	// global.
	s.Hub.Publish(socket.Event{Name: socket.NoteCreatedEvent, Data: note}, socket.ToAll())
	return note, nil
}

// ApplyUpdate is the single write path for both the PUT endpoint and the
// channel's noteUpdate message. origin is the sending session for channel
// updates and empty for requests; the resulting noteUpdated event skips it.
func (s *NoteService) ApplyUpdate(ctx context.Context, ownerID, id string, patch model.NotePatch, origin string) (*store.Note, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, validationError(err)
	}

	note, err := s.Repo.Update(ctx, ownerID, id, patch, s.now())
	if err != nil {
		return nil, storeError(err)
	}

	s.Hub.Publish(socket.Event{Name: socket.NoteUpdatedEvent, Data: note}, s.target(id, origin))
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.Repo.Delete(ctx, ownerID, id); err != nil {
		return storeError(err)
	}

	s.Hub.Publish(socket.Event{Name: socket.NoteDeletedEvent, Data: socket.DeletedPayload{ID: id}}, s.target(id, ""))
	return nil
}

// Ping reports whether the store is reachable.
func (s *NoteService) Ping(ctx context.Context) error {
	if err := s.Repo.Ping(ctx); err != nil {
		return apperr.Wrap(err)
	}
	return nil
}

func (s *NoteService) target(noteID, origin string) socket.Target {
	if s.Delivery == socket.DeliverRoom {
		return socket.ToRoom(socket.RoomFor(noteID), origin)
	}
	if origin != "" {
		return socket.AllExcept(origin)
	}
	return socket.ToAll()
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.ErrNoteNotFound
	case errors.Is(err, store.ErrDuplicateID):
		return &apperr.Error{Kind: apperr.Invalid, Message: "A note with this id already exists", Err: err}
	default:
		return apperr.Wrap(err)
	}
}

func validationError(err error) error {
	if verr := apperr.FromValidation(err); verr != nil {
		return verr
	}
	return apperr.Wrap(err)
}
