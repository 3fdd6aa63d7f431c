package sync

import (
	"encoding/json"
	"time"

	"github.com/boardkit/boardkit/pkg/board"
)

// Participant identifies one connected editor.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Viewport is a participant's visible region: pan offset plus zoom factor.
type Viewport struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// PresenceState is the ephemeral state of one participant. It lives only in
// the awareness channel and is never persisted.
type PresenceState struct {
	Participant
	Cursor    *board.Point  `json:"cursor,omitempty"`
	Drawing   board.Element `json:"-"`
	Viewport  *Viewport     `json:"viewport,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// presenceWire mirrors PresenceState with the drawing as raw JSON, since the
// concrete element type must be recovered from its kind tag.
type presenceWire struct {
	Participant
	Cursor    *board.Point    `json:"cursor,omitempty"`
	Drawing   json.RawMessage `json:"drawing,omitempty"`
	Viewport  *Viewport       `json:"viewport,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// MarshalJSON implements json.Marshaler.
func (p PresenceState) MarshalJSON() ([]byte, error) {
	w := presenceWire{
		Participant: p.Participant,
		Cursor:      p.Cursor,
		Viewport:    p.Viewport,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Drawing != nil {
		raw, err := board.MarshalElement(p.Drawing)
		if err != nil {
			return nil, err
		}
		w.Drawing = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PresenceState) UnmarshalJSON(data []byte) error {
	var w presenceWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Participant = w.Participant
	p.Cursor = w.Cursor
	p.Viewport = w.Viewport
	p.UpdatedAt = w.UpdatedAt
	p.Drawing = nil
	if len(w.Drawing) > 0 {
		el, err := board.UnmarshalElement(w.Drawing)
		if err != nil {
			return err
		}
		p.Drawing = el
	}
	return nil
}

// Origin tags a document change notification with its source.
type Origin struct {
	// Remote is true when the change arrived from another participant.
	// Consumers use it to break feedback loops: remote changes must not be
	// flushed back to the remote authority.
	Remote bool
	// Site is the site id of the writer, when known.
	Site string
}

// MessageType discriminates wire messages.
type MessageType string

// Wire message types.
const (
	// MsgElements carries document element writes (deltas or catch-up).
	MsgElements MessageType = "elements"
	// MsgPresence carries one participant's awareness state.
	MsgPresence MessageType = "presence"
	// MsgSyncRequest asks peers for the full document (late join).
	MsgSyncRequest MessageType = "sync-request"
	// MsgSyncResponse answers MsgSyncRequest with the full document.
	MsgSyncResponse MessageType = "sync-response"
	// MsgLeave announces a participant's departure; its presence is dropped.
	MsgLeave MessageType = "leave"
)

// Message is the wire unit exchanged through a Transport. Ephemeral types
// (presence, leave) are best-effort; element messages must converge but may
// arrive in any order.
type Message struct {
	Type     MessageType    `json:"type"`
	Room     string         `json:"room"`
	From     string         `json:"from"`
	Elements board.Elements `json:"elements,omitempty"`
	Presence *PresenceState `json:"presence,omitempty"`
}

// Transport moves messages between the session and its room. Implementations
// must deliver element messages reliably while connected and may drop
// presence under pressure.
type Transport interface {
	// Send transmits a message to the room. Best-effort for ephemeral types.
	Send(msg Message) error
	// Receive returns the channel of inbound messages. The channel closes
	// when the transport disconnects.
	Receive() <-chan Message
	// Close tears the connection down, announcing departure when possible.
	Close() error
}
