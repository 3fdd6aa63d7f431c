package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/boardkit/boardkit/pkg/patch"
)

func testServer(t *testing.T) (*Server, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	s := New(Options{Store: store, Logger: log.New(io.Discard)})
	return s, store
}

func seedBoard(t *testing.T, store *MemoryStore, id string, version int64) {
	t.Helper()
	err := store.Put(context.Background(), &Board{
		ID:      id,
		Name:    "test board",
		Version: version,
		Data:    map[string]any{"name": "test board"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestGetBoard(t *testing.T) {
	s, store := testServer(t)
	seedBoard(t, store, "b1", 3)

	req := httptest.NewRequest(http.MethodGet, "/boards/b1", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("ETag"); got != "3" {
		t.Errorf("ETag = %q, want 3", got)
	}
	var b Board
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.ID != "b1" || b.Version != 3 {
		t.Errorf("board = %+v", b)
	}
}

func TestGetBoardNotFound(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/boards/nope", nil)
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func patchRequest(t *testing.T, s *Server, boardID, ifMatch string, ops []patch.Operation) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(ops)
	req := httptest.NewRequest(http.MethodPatch, "/boards/"+boardID, bytes.NewReader(body))
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func TestPatchBoardAdvancesVersion(t *testing.T) {
	s, store := testServer(t)
	seedBoard(t, store, "b1", 0)

	ops := []patch.Operation{{Op: patch.OpReplace, Path: "/name", Value: "renamed"}}
	rec := patchRequest(t, s, "b1", "0", ops)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out map[string]int64
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["version"] != 1 {
		t.Errorf("version = %d, want 1", out["version"])
	}

	b, _ := store.Get(context.Background(), "b1")
	if b.Data["name"] != "renamed" {
		t.Errorf("name = %v, want renamed", b.Data["name"])
	}
}

func TestPatchBoardStaleVersionConflicts(t *testing.T) {
	s, store := testServer(t)
	seedBoard(t, store, "b1", 5)

	ops := []patch.Operation{{Op: patch.OpReplace, Path: "/name", Value: "stale"}}
	rec := patchRequest(t, s, "b1", "3", ops)

	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", rec.Code)
	}
	var out map[string]int64
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["version"] != 5 {
		t.Errorf("authoritative version = %d, want 5", out["version"])
	}

	// The stale write must not have landed.
	b, _ := store.Get(context.Background(), "b1")
	if b.Data["name"] != "test board" || b.Version != 5 {
		t.Errorf("board mutated by stale patch: %+v", b)
	}
}

func TestPatchBoardRequiresIfMatch(t *testing.T) {
	s, store := testServer(t)
	seedBoard(t, store, "b1", 0)
	rec := patchRequest(t, s, "b1", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestPutBoardCreates(t *testing.T) {
	s, store := testServer(t)

	body, _ := json.Marshal(Board{Name: "fresh", Data: map[string]any{"name": "fresh"}})
	req := httptest.NewRequest(http.MethodPut, "/boards/new", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	b, err := store.Get(context.Background(), "new")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Name != "fresh" {
		t.Errorf("name = %q", b.Name)
	}
}

// =============================================================================
// Room relay
// =============================================================================

func dialRoom(t *testing.T, srv *httptest.Server, room string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + room + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return conn
}

func TestRoomRelaysToPeersNotSender(t *testing.T) {
	s, _ := testServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	a := dialRoom(t, srv, "r1")
	defer a.Close()
	b := dialRoom(t, srv, "r1")
	defer b.Close()
	other := dialRoom(t, srv, "r2")
	defer other.Close()

	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"elements"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(payload) != `{"type":"elements"}` {
		t.Errorf("payload = %s", payload)
	}

	// The sender and members of other rooms get nothing.
	a.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := a.ReadMessage(); err == nil {
		t.Error("sender received its own message")
	}
	other.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("message leaked across rooms")
	}
}

// echoBroker loops every publication back to all subscribers of the room,
// the publisher's own subscription included, matching redis pub/sub.
type echoBroker struct {
	mu        stdsync.Mutex
	subs      map[string][]chan []byte
	published int
}

func (b *echoBroker) Publish(_ context.Context, room string, payload []byte) error {
	b.mu.Lock()
	b.published++
	chans := append([]chan []byte(nil), b.subs[room]...)
	b.mu.Unlock()
	for _, ch := range chans {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *echoBroker) Subscribe(_ context.Context, room string) (<-chan []byte, func(), error) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[string][]chan []byte)
	}
	b.subs[room] = append(b.subs[room], ch)
	b.mu.Unlock()
	return ch, func() {}, nil
}

func (b *echoBroker) Close() error { return nil }

func (b *echoBroker) publishCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}

func TestRoomIgnoresOwnBrokerEcho(t *testing.T) {
	broker := &echoBroker{}
	store := NewMemoryStore()
	s := New(Options{Store: store, Broker: broker, Logger: log.New(io.Discard)})
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	a := dialRoom(t, srv, "r1")
	defer a.Close()
	b := dialRoom(t, srv, "r1")
	defer b.Close()

	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"elements"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(payload) != `{"type":"elements"}` {
		t.Errorf("payload = %s", payload)
	}

	// The broker echoed the publication back, but the hub published it
	// itself, so nobody sees it twice.
	b.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, extra, err := b.ReadMessage(); err == nil {
		t.Errorf("peer received a duplicate: %s", extra)
	}
	a.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, _, err := a.ReadMessage(); err == nil {
		t.Error("sender received its own message via the broker")
	}
	if got := broker.publishCount(); got != 1 {
		t.Errorf("publish count = %d, want 1", got)
	}
}

func TestBrokerBridgesInstances(t *testing.T) {
	broker := &echoBroker{}
	s1 := New(Options{Store: NewMemoryStore(), Broker: broker, Logger: log.New(io.Discard)})
	s2 := New(Options{Store: NewMemoryStore(), Broker: broker, Logger: log.New(io.Discard)})
	srv1 := httptest.NewServer(s1.Routes())
	defer srv1.Close()
	srv2 := httptest.NewServer(s2.Routes())
	defer srv2.Close()

	a := dialRoom(t, srv1, "r1")
	defer a.Close()
	b := dialRoom(t, srv2, "r1")
	defer b.Close()

	if err := a.WriteMessage(websocket.TextMessage, []byte(`{"type":"presence"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := b.ReadMessage()
	if err != nil {
		t.Fatalf("cross-instance read: %v", err)
	}
	if string(payload) != `{"type":"presence"}` {
		t.Errorf("payload = %s, want the original message unwrapped", payload)
	}
}

func TestMemoryStoreApplyPatchConflict(t *testing.T) {
	store := NewMemoryStore()
	seedBoard(t, store, "b1", 2)

	_, err := store.ApplyPatch(context.Background(), "b1", 1, nil)
	if err == nil {
		t.Fatal("stale patch accepted")
	}
}
