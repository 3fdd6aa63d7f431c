package sync

import (
	stdsync "sync"

	"github.com/boardkit/boardkit/pkg/errors"
)

// Hub is an in-process message switch. Every transport obtained from it
// delivers to the other members of the same room, letting multiple sessions
// in one process share a board without a network.
type Hub struct {
	mu    stdsync.Mutex
	rooms map[string][]*loopback
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string][]*loopback)}
}

// Connect returns a transport attached to the given room.
func (h *Hub) Connect(room string) Transport {
	t := &loopback{
		hub:  h,
		room: room,
		ch:   make(chan Message, 64),
	}
	h.mu.Lock()
	h.rooms[room] = append(h.rooms[room], t)
	h.mu.Unlock()
	return t
}

func (h *Hub) broadcast(from *loopback, msg Message) {
	h.mu.Lock()
	peers := make([]*loopback, 0, len(h.rooms[from.room]))
	for _, t := range h.rooms[from.room] {
		if t != from {
			peers = append(peers, t)
		}
	}
	h.mu.Unlock()

	// A lone member's catch-up request would otherwise hang forever, so the
	// hub answers it with an empty response.
	if len(peers) == 0 && msg.Type == MsgSyncRequest {
		from.deliver(Message{Type: MsgSyncResponse, Room: from.room})
		return
	}
	for _, t := range peers {
		t.deliver(msg)
	}
}

func (h *Hub) remove(t *loopback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[t.room]
	for i, m := range members {
		if m == t {
			h.rooms[t.room] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(h.rooms[t.room]) == 0 {
		delete(h.rooms, t.room)
	}
}

type loopback struct {
	hub  *Hub
	room string
	ch   chan Message

	mu     stdsync.Mutex
	closed bool
}

func (t *loopback) Send(msg Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return errors.New(errors.ErrCodeNetwork, "transport closed")
	}
	t.hub.broadcast(t, msg)
	return nil
}

func (t *loopback) Receive() <-chan Message { return t.ch }

// deliver drops messages when the receiver's buffer is full. Presence is
// lossy by contract and element convergence recovers through catch-up, so
// a slow session never stalls the room.
func (t *loopback) deliver(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	select {
	case t.ch <- msg:
	default:
	}
}

func (t *loopback) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	t.hub.remove(t)
	close(t.ch)
	return nil
}
