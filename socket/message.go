package socket

import "encoding/json"

const (
	// server -> client
	ConnectedEvent   = "connected"
	NoteCreatedEvent = "noteCreated"
	NoteUpdatedEvent = "noteUpdated"
	NoteDeletedEvent = "noteDeleted"

	// client -> server
	NoteUpdateEvent = "noteUpdate"
	JoinNoteEvent   = "joinNote"
	LeaveNoteEvent  = "leaveNote"

	roomPrefix = "note-"
)

// Message is the envelope of every frame on the channel.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outgoing message before encoding.
type Event struct {
	Name string
	Data any
}

type ConnectedPayload struct {
	SessionID string `json:"sessionId"`
}

type DeletedPayload struct {
	ID string `json:"id"`
}

func (e Event) encode() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: e.Name, Data: data})
}

// RoomFor is the room name used for a note id.
func RoomFor(noteID string) string {
	return roomPrefix + noteID
}

// DeliveryScope selects how note mutation events are fanned out.
type DeliveryScope string

const (
	// DeliverGlobal sends every event to every connected session.
	DeliverGlobal DeliveryScope = "global"
	// DeliverRoom sends update and delete events to the note's room only.
	DeliverRoom DeliveryScope = "room"
)

// Target describes the recipients of a broadcast. An empty Room means every
// session. Except, when set, names a session id to skip.
type Target struct {
	Room   string
	Except string
}

func ToAll() Target { return Target{} }

func AllExcept(sessionID string) Target { return Target{Except: sessionID} }

func ToRoom(room, except string) Target { return Target{Room: room, Except: except} }
