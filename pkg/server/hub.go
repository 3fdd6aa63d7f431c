package server

import (
	"context"
	"encoding/json"
	stdsync "sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// hub tracks websocket rooms on this instance. Messages from one member
// relay verbatim to the other members; with a broker attached they also fan
// out to the same room on other instances. The server never interprets room
// traffic, merge semantics live entirely in the clients.
type hub struct {
	id     string
	logger *log.Logger
	broker Broker

	mu    stdsync.Mutex
	rooms map[string]*room
}

// brokerFrame wraps brokered payloads with the publishing instance, so a hub
// can drop its own publications when the broker echoes them back.
type brokerFrame struct {
	Src string          `json:"src"`
	Msg json.RawMessage `json:"msg"`
}

type room struct {
	name    string
	members map[*member]bool
	stop    func() // broker subscription, nil without broker
}

type member struct {
	conn *websocket.Conn

	mu     stdsync.Mutex
	send   chan []byte
	closed bool
}

func newHub(logger *log.Logger, broker Broker) *hub {
	return &hub{
		id:     uuid.NewString(),
		logger: logger,
		broker: broker,
		rooms:  make(map[string]*room),
	}
}

// join adds a connection to a room, creating it on first use.
func (h *hub) join(ctx context.Context, name string, conn *websocket.Conn) *member {
	m := &member{conn: conn, send: make(chan []byte, 64)}

	h.mu.Lock()
	r, ok := h.rooms[name]
	if !ok {
		r = &room{name: name, members: make(map[*member]bool)}
		h.rooms[name] = r
		if h.broker != nil {
			h.attachBroker(ctx, r)
		}
	}
	r.members[m] = true
	h.mu.Unlock()

	go m.writeLoop()
	return m
}

// attachBroker subscribes the room to cross-instance traffic. Called with
// h.mu held.
func (h *hub) attachBroker(ctx context.Context, r *room) {
	ch, stop, err := h.broker.Subscribe(ctx, r.name)
	if err != nil {
		h.logger.Warn("broker subscribe failed, room is instance-local", "room", r.name, "err", err)
		return
	}
	r.stop = stop
	go func() {
		for payload := range ch {
			var f brokerFrame
			if err := json.Unmarshal(payload, &f); err != nil || f.Src == "" {
				h.logger.Debug("dropping malformed broker payload", "room", r.name)
				continue
			}
			if f.Src == h.id {
				// Our own publication, local members already have it.
				continue
			}
			h.deliver(r.name, nil, f.Msg)
		}
	}()
}

// relay distributes one message from a member: local peers first, then the
// broker for remote instances.
func (h *hub) relay(ctx context.Context, roomName string, from *member, payload []byte) {
	h.deliver(roomName, from, payload)
	if h.broker == nil {
		return
	}
	frame, err := json.Marshal(brokerFrame{Src: h.id, Msg: payload})
	if err != nil {
		h.logger.Debug("broker frame encode failed", "room", roomName, "err", err)
		return
	}
	if err := h.broker.Publish(ctx, roomName, frame); err != nil {
		h.logger.Debug("broker publish failed", "room", roomName, "err", err)
	}
}

// deliver hands payload to every member of the room except from.
func (h *hub) deliver(roomName string, from *member, payload []byte) {
	h.mu.Lock()
	r, ok := h.rooms[roomName]
	if !ok {
		h.mu.Unlock()
		return
	}
	peers := make([]*member, 0, len(r.members))
	for m := range r.members {
		if m != from {
			peers = append(peers, m)
		}
	}
	h.mu.Unlock()

	for _, m := range peers {
		m.trySend(payload)
	}
}

// leave drops a member and tears the room down when it empties.
func (h *hub) leave(roomName string, m *member) {
	h.mu.Lock()
	r, ok := h.rooms[roomName]
	if ok {
		delete(r.members, m)
		if len(r.members) == 0 {
			if r.stop != nil {
				r.stop()
			}
			delete(h.rooms, roomName)
		}
	}
	h.mu.Unlock()
	m.close()
}

// memberCount reports the local members of a room.
func (h *hub) memberCount(roomName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomName]
	if !ok {
		return 0
	}
	return len(r.members)
}

func (m *member) writeLoop() {
	for payload := range m.send {
		if err := m.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

// trySend queues a payload unless the member is gone or stalled. A stalled
// reader loses frames, never blocks the room.
func (m *member) trySend(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.send <- payload:
	default:
	}
}

func (m *member) close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()
	close(m.send)
	_ = m.conn.Close()
}
