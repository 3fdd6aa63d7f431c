package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"testing"
	"time"

	"github.com/boardkit/boardkit/pkg/errors"
	"github.com/boardkit/boardkit/pkg/patch"
	"github.com/boardkit/boardkit/pkg/store"
)

// fakeRemote records calls and returns scripted results.
type fakeRemote struct {
	mu      stdsync.Mutex
	calls   []fakeCall
	version int64
	err     error
}

type fakeCall struct {
	boardID string
	version int64
	ops     []patch.Operation
}

func (f *fakeRemote) Patch(_ context.Context, boardID string, version int64, ops []patch.Operation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeCall{boardID: boardID, version: version, ops: ops})
	if f.err != nil {
		return 0, f.err
	}
	f.version = version + 1
	return f.version, nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestUpdateQueuesPerFieldOperations(t *testing.T) {
	b := New(Options{BoardID: "b1"})
	defer b.Close()

	b.Update(map[string]any{"name": "retro board"})
	b.Update(map[string]any{"name": "sprint board", "archived": true})

	if got := b.Status(); got != StatusQueuedRemote {
		t.Errorf("status = %v, want %v", got, StatusQueuedRemote)
	}
	if got := b.Queued(); got != 3 {
		t.Errorf("queued ops = %d, want 3 (add, replace, add)", got)
	}
	doc := b.Document()
	if doc["name"] != "sprint board" || doc["archived"] != true {
		t.Errorf("document = %v, want shallow-merged fields", doc)
	}

	// nil removes the field and queues a remove op.
	b.Update(map[string]any{"archived": nil})
	if _, ok := b.Document()["archived"]; ok {
		t.Error("archived should be removed")
	}
	if got := b.Queued(); got != 4 {
		t.Errorf("queued ops = %d, want 4", got)
	}

	// Removing a field that never existed queues nothing.
	b.Update(map[string]any{"ghost": nil})
	if got := b.Queued(); got != 4 {
		t.Errorf("queued ops = %d after no-op remove, want 4", got)
	}
}

func TestFlushNowAdvancesVersionAndClearsQueue(t *testing.T) {
	remote := &fakeRemote{}
	b := New(Options{BoardID: "b1", Remote: remote})
	defer b.Close()

	b.Update(map[string]any{"name": "x"})
	if err := b.FlushNow(context.Background()); err != nil {
		t.Fatalf("FlushNow: %v", err)
	}

	if got := b.Version(); got != 1 {
		t.Errorf("version = %d, want 1", got)
	}
	if got := b.Queued(); got != 0 {
		t.Errorf("queued = %d, want 0", got)
	}
	if got := b.Status(); got != StatusIdle {
		t.Errorf("status = %v, want %v", got, StatusIdle)
	}

	remote.mu.Lock()
	defer remote.mu.Unlock()
	if len(remote.calls) != 1 || remote.calls[0].version != 0 || remote.calls[0].boardID != "b1" {
		t.Fatalf("remote calls = %+v, want one call at version 0", remote.calls)
	}
	if len(remote.calls[0].ops) != 1 || remote.calls[0].ops[0].Op != patch.OpAdd {
		t.Errorf("ops = %+v, want single add", remote.calls[0].ops)
	}
}

func TestFlushConflictKeepsQueueForRetry(t *testing.T) {
	remote := &fakeRemote{err: &errors.VersionConflictError{Expected: 0, Actual: 9}}
	b := New(Options{BoardID: "b1", Remote: remote})
	defer b.Close()

	b.Update(map[string]any{"name": "x"})
	err := b.FlushNow(context.Background())
	if !errors.IsConflict(err) {
		t.Fatalf("err = %v, want version conflict", err)
	}
	if got := b.Status(); got != StatusError {
		t.Errorf("status = %v, want %v", got, StatusError)
	}
	if got := b.Queued(); got != 1 {
		t.Fatalf("queued = %d after conflict, want 1 (retained for retry)", got)
	}

	// After re-fetching authoritative state the same edit can be replayed.
	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()
	b.mu.Lock()
	b.version = 9
	b.mu.Unlock()
	if err := b.FlushNow(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := b.Version(); got != 10 {
		t.Errorf("version = %d after retry, want 10", got)
	}
}

func TestScheduleFlushDebounces(t *testing.T) {
	remote := &fakeRemote{}
	b := New(Options{BoardID: "b1", Remote: remote, Debounce: 30 * time.Millisecond})
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Update(map[string]any{"name": i})
		b.ScheduleFlush(ReasonEdit)
	}
	time.Sleep(120 * time.Millisecond)

	if got := remote.callCount(); got != 1 {
		t.Errorf("remote calls = %d, want 1 (burst coalesced)", got)
	}
	if got := b.Queued(); got != 0 {
		t.Errorf("queued = %d, want 0", got)
	}
}

func TestPageHideFlushesWithoutWaiting(t *testing.T) {
	remote := &fakeRemote{}
	b := New(Options{BoardID: "b1", Remote: remote})
	defer b.Close()

	b.Update(map[string]any{"name": "x"})
	b.ScheduleFlush(ReasonPageHide)

	deadline := time.Now().Add(time.Second)
	for remote.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := remote.callCount(); got != 1 {
		t.Fatalf("remote calls = %d, want 1", got)
	}
	// Fire-and-forget: the queue is only cleared by a confirmed flush.
	if got := b.Queued(); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
}

func TestMirrorRoundTrip(t *testing.T) {
	kv := store.NewMemory()
	b := New(Options{BoardID: "b1", Mirror: kv})
	b.Update(map[string]any{"name": "persisted"})
	b.Close()

	restored := New(Options{BoardID: "b1", Mirror: kv})
	defer restored.Close()
	if err := restored.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := restored.Document()["name"]; got != "persisted" {
		t.Errorf("restored name = %v, want persisted", got)
	}
}

// slowKV delays every write, standing in for a sluggish disk.
type slowKV struct {
	inner *store.Memory
	delay time.Duration

	mu   stdsync.Mutex
	sets int
}

func (s *slowKV) Get(ctx context.Context, name string) ([]byte, bool, error) {
	return s.inner.Get(ctx, name)
}

func (s *slowKV) Set(ctx context.Context, name string, value []byte) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	return s.inner.Set(ctx, name, value)
}

func (s *slowKV) Remove(ctx context.Context, name string) error {
	return s.inner.Remove(ctx, name)
}

func (s *slowKV) Close() error { return s.inner.Close() }

func (s *slowKV) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func TestUpdateReturnsBeforeMirrorWrite(t *testing.T) {
	kv := &slowKV{inner: store.NewMemory(), delay: 150 * time.Millisecond}
	b := New(Options{BoardID: "b1", Mirror: kv})

	start := time.Now()
	b.Update(map[string]any{"name": "quick"})
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("Update blocked for %v on the mirror write", elapsed)
	}

	b.Close()
	if kv.setCount() == 0 {
		t.Fatal("mirror write never happened")
	}
	raw, ok, err := kv.Get(context.Background(), "board-state")
	if err != nil || !ok {
		t.Fatalf("mirror read: ok=%v err=%v", ok, err)
	}
	var st mirrorState
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("decode mirror: %v", err)
	}
	if st.Data["name"] != "quick" {
		t.Errorf("mirrored name = %v, want quick", st.Data["name"])
	}
}

func TestMirrorCoalescesBurstsIntoOneWrite(t *testing.T) {
	kv := &slowKV{inner: store.NewMemory(), delay: 100 * time.Millisecond}
	b := New(Options{BoardID: "b1", Mirror: kv})

	for i := 0; i < 10; i++ {
		b.Update(map[string]any{"rev": float64(i)})
	}
	b.Close()

	// The first update starts a write; the rest arrive while it is in
	// flight and collapse into a single trailing snapshot.
	if got := kv.setCount(); got > 2 {
		t.Errorf("mirror writes = %d, want at most 2 for a burst", got)
	}
	raw, ok, _ := kv.Get(context.Background(), "board-state")
	if !ok {
		t.Fatal("mirror empty after burst")
	}
	var st mirrorState
	if err := json.Unmarshal(raw, &st); err != nil {
		t.Fatalf("decode mirror: %v", err)
	}
	if st.Data["rev"] != float64(9) {
		t.Errorf("mirrored rev = %v, want 9 (latest snapshot wins)", st.Data["rev"])
	}
}

func TestHTTPRemotePatch(t *testing.T) {
	var gotIfMatch string
	var gotOps []patch.Operation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/boards/b1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotIfMatch = r.Header.Get("If-Match")
		if err := json.NewDecoder(r.Body).Decode(&gotOps); err != nil {
			t.Errorf("decode ops: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]int64{"version": 8})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, nil)
	ops := []patch.Operation{{Op: patch.OpReplace, Path: "/name", Value: "x"}}
	v, err := remote.Patch(context.Background(), "b1", 7, ops)
	if err != nil {
		t.Fatalf("Patch: %v", err)
	}
	if v != 8 {
		t.Errorf("version = %d, want 8", v)
	}
	if gotIfMatch != "7" {
		t.Errorf("If-Match = %q, want 7", gotIfMatch)
	}
	if len(gotOps) != 1 || gotOps[0].Path != "/name" {
		t.Errorf("ops = %+v", gotOps)
	}
}

func TestHTTPRemoteConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		json.NewEncoder(w).Encode(map[string]int64{"version": 42})
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, nil)
	_, err := remote.Patch(context.Background(), "b1", 7, nil)
	if !errors.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
	var vc *errors.VersionConflictError
	if !stderrors.As(err, &vc) || vc.Actual != 42 || vc.Expected != 7 {
		t.Errorf("conflict = %+v, want expected 7 actual 42", vc)
	}
}
