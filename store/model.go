package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("note not found")
	ErrDuplicateID = errors.New("note id already exists")
)

// DefaultTitle is used when a note is created without a title.
const DefaultTitle = "Untitled Note"

// Note is the persisted markdown note. ID is assigned by the application and
// is independent of the storage engine's own row key.
type Note struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
