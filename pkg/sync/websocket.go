package sync

import (
	"context"
	"encoding/json"
	stdsync "sync"

	"github.com/gorilla/websocket"

	"github.com/boardkit/boardkit/pkg/errors"
)

// wsTransport speaks JSON-encoded Messages over a websocket. Both dialed
// client connections and server-accepted connections use it.
type wsTransport struct {
	conn *websocket.Conn
	ch   chan Message
	done chan struct{}

	writeMu stdsync.Mutex
	once    stdsync.Once
}

// Dial connects to a room endpoint, e.g. ws://host/rooms/{id}/ws.
func Dial(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "dial %s", url)
	}
	return NewConnTransport(conn), nil
}

// NewConnTransport wraps an established websocket connection. It takes
// ownership: closing the transport closes the connection.
func NewConnTransport(conn *websocket.Conn) Transport {
	t := &wsTransport{
		conn: conn,
		ch:   make(chan Message, 64),
		done: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *wsTransport) Send(msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode message")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "write message")
	}
	return nil
}

func (t *wsTransport) Receive() <-chan Message { return t.ch }

// readLoop owns t.ch: it alone closes the channel, when the connection ends.
func (t *wsTransport) readLoop() {
	defer close(t.ch)
	defer t.Close()
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue // malformed frames are dropped, not fatal
		}
		select {
		case t.ch <- msg:
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}
