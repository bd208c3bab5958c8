package repository

import (
	"context"
	"testing"
	"time"

	"notesync/internal/note/model"
	"notesync/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"note_id", "owner_id", "title", "content", "pinned", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*NoteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewNoteRepository(db), mock
}

func TestListScopesByOwnerAndOrders(t *testing.T) {
	repo, mock := newMockRepo(t)
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	mock.ExpectQuery(`SELECT (.+) FROM notes WHERE (.+) ORDER BY pinned DESC, updated_at DESC`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("a", "user-1", "Pinned", "", true, t1, t1).
			AddRow("b", "user-1", "Recent", "body", false, t1, t2))

	notes, err := repo.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "a", notes[0].ID)
	assert.True(t, notes[0].Pinned)
	assert.Equal(t, "body", notes[1].Content)
	assert.Equal(t, t2, notes[1].UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListEmptyReturnsEmptySlice(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM notes`).
		WithArgs("").
		WillReturnRows(sqlmock.NewRows(columns))

	notes, err := repo.List(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestGetMissingIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM notes WHERE note_id = \$1`).
		WithArgs("missing", "").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), "", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO notes`).
		WithArgs("dup", "", "T", "", false, now, now).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Create(context.Background(), &store.Note{ID: "dup", Title: "T", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, store.ErrDuplicateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeavesAbsentFieldsNull(t *testing.T) {
	repo, mock := newMockRepo(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Minute)
	title := "T2"

	mock.ExpectQuery(`UPDATE notes SET`).
		WithArgs("n1", "", "T2", nil, nil, now).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("n1", "", "T2", "C", false, created, now))

	n, err := repo.Update(context.Background(), "", "n1", model.NotePatch{Title: &title}, now)
	require.NoError(t, err)
	assert.Equal(t, "T2", n.Title)
	assert.Equal(t, "C", n.Content)
	assert.Equal(t, now, n.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`DELETE FROM notes`).
		WithArgs("gone", "user-1").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Delete(context.Background(), "user-1", "gone")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
