package repository

import (
	"context"
	"database/sql"
	"errors"
	"notesync/internal/note/model"
	"notesync/pkg/logger"
	"notesync/store"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const noteColumns = `note_id, owner_id, title, content, pinned, created_at, updated_at`

// NoteRepository persists notes in Postgres. An empty ownerID means the
// lookup is not owner-scoped.
type NoteRepository struct {
	DB *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{DB: db}
}

func (r *NoteRepository) List(ctx context.Context, ownerID string) ([]store.Note, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY pinned DESC, updated_at DESC`, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list notes for owner %q: %v", ownerID, err)
		return nil, err
	}
	defer rows.Close()

	notes := []store.Note{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func (r *NoteRepository) Get(ctx context.Context, ownerID, id string) (*store.Note, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes
		WHERE note_id = $1 AND ($2 = '' OR owner_id = $2)`, id, ownerID)
	return scanNoteOrNotFound(row, "get", id)
}

func (r *NoteRepository) Create(ctx context.Context, n *store.Note) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notes (`+noteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.OwnerID, n.Title, n.Content, n.Pinned, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicateID
		}
		logger.Sugar.Errorf("Failed to create note %s: %v", n.ID, err)
	}
	return err
}

func (r *NoteRepository) Update(ctx context.Context, ownerID, id string, patch model.NotePatch, now time.Time) (*store.Note, error) {
	row := r.DB.QueryRowContext(ctx, `UPDATE notes SET
			title = COALESCE($3, title),
			content = COALESCE($4, content),
			pinned = COALESCE($5, pinned),
			updated_at = $6
		WHERE note_id = $1 AND ($2 = '' OR owner_id = $2)
		RETURNING `+noteColumns,
		id, ownerID, nullable(patch.Title), nullable(patch.Content), nullable(patch.Pinned), now)
	return scanNoteOrNotFound(row, "update", id)
}

func (r *NoteRepository) Delete(ctx context.Context, ownerID, id string) (*store.Note, error) {
	row := r.DB.QueryRowContext(ctx, `DELETE FROM notes
		WHERE note_id = $1 AND ($2 = '' OR owner_id = $2)
		RETURNING `+noteColumns, id, ownerID)
	return scanNoteOrNotFound(row, "delete", id)
}

func (r *NoteRepository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*store.Note, error) {
	var n store.Note
	if err := s.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.Pinned, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func scanNoteOrNotFound(row *sql.Row, op, id string) (*store.Note, error) {
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to %s note %s: %v", op, id, err)
		return nil, err
	}
	return n, nil
}

// nullable turns an absent patch field into SQL NULL so COALESCE keeps the
// stored value.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
