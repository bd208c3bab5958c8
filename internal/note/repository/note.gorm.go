package repository

import (
	"context"
	"errors"
	"notesync/internal/note/model"
	"notesync/pkg/logger"
	"notesync/store"
	"time"

	"gorm.io/gorm"
)

// noteRecord is the gorm row. PK is the engine's key; NoteID is the
// application id exposed as Note.ID.
type noteRecord struct {
	PK        uint      `gorm:"column:pk;primaryKey;autoIncrement"`
	NoteID    string    `gorm:"column:note_id;uniqueIndex;not null"`
	OwnerID   string    `gorm:"column:owner_id;index;not null;default:''"`
	Title     string    `gorm:"column:title;not null"`
	Content   string    `gorm:"column:content;not null;default:''"`
	Pinned    bool      `gorm:"column:pinned;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime:false;not null"`
}

func (noteRecord) TableName() string { return "notes" }

func (r *noteRecord) toNote() *store.Note {
	return &store.Note{
		ID:        r.NoteID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		Content:   r.Content,
		Pinned:    r.Pinned,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// GormNoteRepository is the SQLite-backed store used for local development.
type GormNoteRepository struct {
	db *gorm.DB
}

func NewGormNoteRepository(db *gorm.DB) *GormNoteRepository {
	return &GormNoteRepository{db: db}
}

// Migrate creates or updates the notes table.
func (g *GormNoteRepository) Migrate() error {
	return g.db.AutoMigrate(&noteRecord{})
}

func (g *GormNoteRepository) List(ctx context.Context, ownerID string) ([]store.Note, error) {
	var records []noteRecord
	err := g.scoped(g.db.WithContext(ctx), ownerID).
		Order("pinned DESC").
		Order("updated_at DESC").
		Find(&records).Error
	if err != nil {
		logger.Sugar.Errorf("Failed to list notes for owner %q: %v", ownerID, err)
		return nil, err
	}

	notes := make([]store.Note, 0, len(records))
	for i := range records {
		notes = append(notes, *records[i].toNote())
	}
	return notes, nil
}

func (g *GormNoteRepository) Get(ctx context.Context, ownerID, id string) (*store.Note, error) {
	rec, err := g.find(g.db.WithContext(ctx), ownerID, id)
	if err != nil {
		return nil, err
	}
	return rec.toNote(), nil
}

func (g *GormNoteRepository) Create(ctx context.Context, n *store.Note) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&noteRecord{}).Where("note_id = ?", n.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return store.ErrDuplicateID
		}
		rec := noteRecord{
			NoteID:    n.ID,
			OwnerID:   n.OwnerID,
			Title:     n.Title,
			Content:   n.Content,
			Pinned:    n.Pinned,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.UpdatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			logger.Sugar.Errorf("Failed to create note %s: %v", n.ID, err)
			return err
		}
		return nil
	})
}

func (g *GormNoteRepository) Update(ctx context.Context, ownerID, id string, patch model.NotePatch, now time.Time) (*store.Note, error) {
	var updated *store.Note
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := g.find(tx, ownerID, id)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			rec.Title = *patch.Title
		}
		if patch.Content != nil {
			rec.Content = *patch.Content
		}
		if patch.Pinned != nil {
			rec.Pinned = *patch.Pinned
		}
		rec.UpdatedAt = now
		if err := tx.Save(rec).Error; err != nil {
			logger.Sugar.Errorf("Failed to update note %s: %v", id, err)
			return err
		}
		updated = rec.toNote()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (g *GormNoteRepository) Delete(ctx context.Context, ownerID, id string) (*store.Note, error) {
	var deleted *store.Note
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := g.find(tx, ownerID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(rec).Error; err != nil {
			logger.Sugar.Errorf("Failed to delete note %s: %v", id, err)
			return err
		}
		deleted = rec.toNote()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (g *GormNoteRepository) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *GormNoteRepository) find(tx *gorm.DB, ownerID, id string) (*noteRecord, error) {
	var rec noteRecord
	err := g.scoped(tx, ownerID).Where("note_id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to find note %s: %v", id, err)
		return nil, err
	}
	return &rec, nil
}

func (g *GormNoteRepository) scoped(tx *gorm.DB, ownerID string) *gorm.DB {
	if ownerID == "" {
		return tx
	}
	return tx.Where("owner_id = ?", ownerID)
}
