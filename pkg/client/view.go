package client

import (
	"context"
	"errors"
	"notesync/pkg/logger"
	"notesync/socket"
	"notesync/store"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultDebounce is how long content edits wait before they are flushed.
const DefaultDebounce = time.Second

var ErrNoSelection = errors.New("no note selected")

// API is the part of the REST client the view needs.
type API interface {
	ListNotes(ctx context.Context) ([]store.Note, error)
	UpdateNote(ctx context.Context, id string, p Patch) (*store.Note, error)
}

// Channel is the part of the sync session the view needs.
type Channel interface {
	SendUpdate(id string, p Patch) error
	Join(noteID string) error
	Leave(noteID string) error
}

// View is a local, possibly stale, copy of the note list plus the note being
// edited. It is reconciled against both REST responses and channel events.
type View struct {
	API      API
	Channel  Channel
	Debounce time.Duration
	Timeout  time.Duration

	mu       sync.Mutex
	notes    []store.Note
	selected *store.Note
	pending  *time.Timer
}

func NewView(api API, ch Channel) *View {
	return &View{
		API:      api,
		Channel:  ch,
		Debounce: DefaultDebounce,
		Timeout:  10 * time.Second,
	}
}

// Load replaces the list with the server's.
func (v *View) Load(ctx context.Context) error {
	notes, err := v.API.ListNotes(ctx)
	if err != nil {
		return err
	}
	v.mu.Lock()
	v.notes = notes
	v.mu.Unlock()
	return nil
}

// Notes returns a copy of the list in its current order.
func (v *View) Notes() []store.Note {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.notes)
}

func (v *View) Selected() (store.Note, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return store.Note{}, false
	}
	return *v.selected, true
}

// Select makes the note with id the selection and moves room membership to it.
func (v *View) Select(id string) error {
	v.mu.Lock()
	i := v.index(id)
	if i < 0 {
		v.mu.Unlock()
		return store.ErrNotFound
	}
	prev := ""
	if v.selected != nil {
		prev = v.selected.ID
	}
	if prev == id {
		v.mu.Unlock()
		return nil
	}
	var (
		unsavedID string
		unsaved   Patch
	)
	if v.pending != nil {
		unsavedID, unsaved = v.snapshot()
		v.stopPending()
	}
	note := v.notes[i]
	v.selected = &note
	v.mu.Unlock()

	// Edits still waiting on the debounce belong to the previous note.
	if unsavedID != "" {
		if err := v.flush(unsavedID, unsaved); err != nil {
			logger.Sugar.Errorf("Failed to save note %s: %v", unsavedID, err)
		}
	}
	if prev != "" {
		if err := v.Channel.Leave(prev); err != nil {
			return err
		}
	}
	return v.Channel.Join(id)
}

// EditTitle changes the selection's title and flushes right away.
func (v *View) EditTitle(title string) error {
	v.mu.Lock()
	if v.selected == nil {
		v.mu.Unlock()
		return ErrNoSelection
	}
	v.selected.Title = title
	v.stopPending()
	id, patch := v.snapshot()
	v.mu.Unlock()

	return v.flush(id, patch)
}

// EditContent changes the selection's content and schedules a flush once
// edits stop for the debounce period.
func (v *View) EditContent(content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return ErrNoSelection
	}
	v.selected.Content = content
	v.stopPending()

	var timer *time.Timer
	timer = time.AfterFunc(v.Debounce, func() {
		v.mu.Lock()
		if v.pending != timer || v.selected == nil {
			v.mu.Unlock()
			return
		}
		v.pending = nil
		id, patch := v.snapshot()
		v.mu.Unlock()

		if err := v.flush(id, patch); err != nil {
			logger.Sugar.Errorf("Failed to save note %s: %v", id, err)
		}
	})
	v.pending = timer
	return nil
}

// Pending reports whether a content edit is waiting to be flushed.
func (v *View) Pending() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pending != nil
}

// Close drops any pending flush.
func (v *View) Close() {
	v.mu.Lock()
	v.stopPending()
	v.mu.Unlock()
}

// Apply merges a channel event into the view. An update to the selected note
// replaces the selection wholesale, unflushed local edits included.
func (v *View) Apply(ev Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Name {
	case socket.NoteCreatedEvent:
		if ev.Note == nil {
			return
		}
		if i := v.index(ev.Note.ID); i >= 0 {
			v.notes[i] = *ev.Note
		} else {
			v.notes = append([]store.Note{*ev.Note}, v.notes...)
		}
	case socket.NoteUpdatedEvent:
		if ev.Note == nil {
			return
		}
		if i := v.index(ev.Note.ID); i >= 0 {
			v.notes[i] = *ev.Note
		}
		if v.selected != nil && v.selected.ID == ev.Note.ID {
			note := *ev.Note
			v.selected = &note
		}
	case socket.NoteDeletedEvent:
		if i := v.index(ev.DeletedID); i >= 0 {
			v.notes = slices.Delete(v.notes, i, i+1)
		}
		if v.selected != nil && v.selected.ID == ev.DeletedID {
			v.selected = nil
			v.stopPending()
		}
	}
}

// Follow applies events until the channel closes or ctx is done.
func (v *View) Follow(ctx context.Context, events <-chan Event, onEvent func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			v.Apply(ev)
			if onEvent != nil {
				onEvent(ev)
			}
		}
	}
}

// Search returns the notes whose title or content contains term, ignoring case.
func (v *View) Search(term string) []store.Note {
	v.mu.Lock()
	defer v.mu.Unlock()
	term = strings.ToLower(term)
	var out []store.Note
	for _, n := range v.notes {
		if strings.Contains(strings.ToLower(n.Title), term) || strings.Contains(strings.ToLower(n.Content), term) {
			out = append(out, n)
		}
	}
	return out
}

// flush saves through the REST API and mirrors the change on the channel.
func (v *View) flush(id string, patch Patch) error {
	ctx, cancel := context.WithTimeout(context.Background(), v.Timeout)
	defer cancel()

	saved, err := v.API.UpdateNote(ctx, id, patch)
	if err != nil {
		return err
	}

	v.mu.Lock()
	if i := v.index(saved.ID); i >= 0 {
		v.notes[i] = *saved
	}
	v.mu.Unlock()

	return v.Channel.SendUpdate(id, patch)
}

// snapshot and the helpers below expect v.mu to be held.
func (v *View) snapshot() (string, Patch) {
	title, content := v.selected.Title, v.selected.Content
	return v.selected.ID, Patch{Title: &title, Content: &content}
}

func (v *View) stopPending() {
	if v.pending != nil {
		v.pending.Stop()
		v.pending = nil
	}
}

func (v *View) index(id string) int {
	return slices.IndexFunc(v.notes, func(n store.Note) bool { return n.ID == id })
}
