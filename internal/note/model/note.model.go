package model

type CreateNoteRequest struct {
	ID      string `json:"id" validate:"omitempty,max=128,excludesall=/?# "`
	Title   string `json:"title" validate:"max=256"`
	Content string `json:"content"`
	Pinned  bool   `json:"pinned"`
}

// NotePatch carries the fields to change. Nil fields are left untouched.
type NotePatch struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,max=256"`
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}

// SyncUpdate is the payload of a noteUpdate channel message.
type SyncUpdate struct {
	ID string `json:"id" validate:"required,max=128"`
	NotePatch
}

type DeleteNoteResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
