package bridge

import (
	"context"
	"encoding/json"
	stderrors "errors"
	stdsync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boardkit/boardkit/pkg/errors"
	"github.com/boardkit/boardkit/pkg/observability"
	"github.com/boardkit/boardkit/pkg/patch"
	"github.com/boardkit/boardkit/pkg/store"
)

// Status is the bridge's save-state indicator.
type Status string

const (
	// StatusIdle means nothing is waiting to be persisted.
	StatusIdle Status = "idle"
	// StatusQueuedRemote means local mutations await a flush.
	StatusQueuedRemote Status = "queued-remote"
	// StatusFlushing means a flush is in flight.
	StatusFlushing Status = "flushing"
	// StatusError means the last flush failed; the queue is retained and a
	// retry is possible.
	StatusError Status = "error"
)

// FlushReason selects the debounce applied by ScheduleFlush.
type FlushReason string

const (
	// ReasonEdit is an ordinary mutation: long debounce, edits batch up.
	ReasonEdit FlushReason = "edit"
	// ReasonPointerRelease ends a gesture: short debounce.
	ReasonPointerRelease FlushReason = "pointer-release"
	// ReasonPageHide means the host is going away: flush immediately,
	// fire-and-forget.
	ReasonPageHide FlushReason = "page-hide"
)

// Remote is the authority that accepts queued patches. Implementations send
// ordered operations guarded by the expected document version and return the
// new version on success. A stale expected version yields an error matched by
// errors.IsConflict.
type Remote interface {
	Patch(ctx context.Context, boardID string, version int64, ops []patch.Operation) (int64, error)
}

const (
	// DefaultDebounce batches ordinary edits.
	DefaultDebounce = 2 * time.Second
	// DefaultReleaseDebounce flushes shortly after a gesture ends.
	DefaultReleaseDebounce = 300 * time.Millisecond

	mirrorKey = "board-state"
)

// Options configures a Bridge.
type Options struct {
	BoardID string
	Remote  Remote

	// Mirror receives best-effort local copies of board state. Nil disables
	// mirroring.
	Mirror store.KV

	Logger *log.Logger

	Debounce        time.Duration
	ReleaseDebounce time.Duration
}

// Bridge queues local board mutations and reconciles them with the remote
// authority.
type Bridge struct {
	boardID string
	remote  Remote
	mirror  store.KV
	logger  *log.Logger

	debounce        time.Duration
	releaseDebounce time.Duration

	mu        stdsync.Mutex
	doc       map[string]any
	version   int64
	queue     []patch.Operation
	status    Status
	timer     *time.Timer
	nextSub   int
	statusFns map[int]func(Status)
	closed    bool

	mirrorMu   stdsync.Mutex
	mirrorPend *mirrorState
	mirrorBusy bool
	mirrorWG   stdsync.WaitGroup
}

// New returns a bridge for one board. The initial document is empty at
// version zero; use Load to restore the mirror, or Reset after fetching
// authoritative state.
func New(opts Options) *Bridge {
	b := &Bridge{
		boardID:         opts.BoardID,
		remote:          opts.Remote,
		mirror:          opts.Mirror,
		logger:          opts.Logger,
		debounce:        opts.Debounce,
		releaseDebounce: opts.ReleaseDebounce,
		doc:             make(map[string]any),
		status:          StatusIdle,
		statusFns:       make(map[int]func(Status)),
	}
	if b.debounce <= 0 {
		b.debounce = DefaultDebounce
	}
	if b.releaseDebounce <= 0 {
		b.releaseDebounce = DefaultReleaseDebounce
	}
	return b
}

// mirrorState is the blob format of the local mirror.
type mirrorState struct {
	Version int64          `json:"version"`
	Data    map[string]any `json:"data"`
}

// Load restores document and version from the local mirror, if present.
func (b *Bridge) Load(ctx context.Context) error {
	if b.mirror == nil {
		return nil
	}
	raw, ok, err := b.mirror.Get(ctx, mirrorKey)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "read mirror")
	}
	if !ok {
		return nil
	}
	var st mirrorState
	if err := json.Unmarshal(raw, &st); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "decode mirror")
	}
	b.mu.Lock()
	b.doc = st.Data
	if b.doc == nil {
		b.doc = make(map[string]any)
	}
	b.version = st.Version
	b.mu.Unlock()
	return nil
}

// Reset replaces the local document and version with authoritative state and
// drops the queue. Use after re-fetching the board to recover from a version
// conflict.
func (b *Bridge) Reset(doc map[string]any, version int64) {
	b.mu.Lock()
	b.doc = deepCopyMap(doc)
	b.version = version
	b.queue = nil
	b.setStatusLocked(StatusIdle)
	b.mu.Unlock()
	b.scheduleMirror()
}

// Update applies a shallow patch to the board document: each field in
// partial replaces (or adds) the top-level field of the same name, and a nil
// value removes it. Every field becomes one queued JSON Patch operation.
func (b *Bridge) Update(partial map[string]any) {
	if len(partial) == 0 {
		return
	}
	b.mu.Lock()
	for field, value := range partial {
		path := "/" + escapePointer(field)
		_, exists := b.doc[field]
		switch {
		case value == nil:
			if !exists {
				continue
			}
			delete(b.doc, field)
			b.queue = append(b.queue, patch.Operation{Op: patch.OpRemove, Path: path})
		case exists:
			b.doc[field] = value
			b.queue = append(b.queue, patch.Operation{Op: patch.OpReplace, Path: path, Value: value})
		default:
			b.doc[field] = value
			b.queue = append(b.queue, patch.Operation{Op: patch.OpAdd, Path: path, Value: value})
		}
	}
	queued := len(b.queue) > 0
	if queued {
		b.setStatusLocked(StatusQueuedRemote)
	}
	b.mu.Unlock()
	b.scheduleMirror()
}

// ScheduleFlush arms the flush timer. Repeated calls reset it, so a burst of
// edits produces one flush. Page-hide bypasses the timer entirely and sends
// fire-and-forget: the response is not awaited and the queue is retained
// until a confirmed flush clears it.
func (b *Bridge) ScheduleFlush(reason FlushReason) {
	if reason == ReasonPageHide {
		b.mu.Lock()
		ops := append([]patch.Operation(nil), b.queue...)
		version := b.version
		b.mu.Unlock()
		if len(ops) == 0 || b.remote == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if _, err := b.remote.Patch(ctx, b.boardID, version, ops); err != nil && b.logger != nil {
				b.logger.Debug("page-hide flush failed", "board", b.boardID, "err", err)
			}
		}()
		return
	}

	delay := b.debounce
	if reason == ReasonPointerRelease {
		delay = b.releaseDebounce
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := b.FlushNow(ctx); err != nil && b.logger != nil {
			b.logger.Warn("flush failed", "board", b.boardID, "err", err)
		}
	})
}

// FlushNow sends the queued operations guarded by the expected version.
// Success advances the version and clears the sent operations; a version
// conflict (or any other failure) keeps the queue intact and moves the
// bridge to StatusError so the caller can re-fetch and retry.
func (b *Bridge) FlushNow(ctx context.Context) error {
	b.mu.Lock()
	if len(b.queue) == 0 || b.remote == nil {
		b.mu.Unlock()
		return nil
	}
	ops := append([]patch.Operation(nil), b.queue...)
	version := b.version
	b.setStatusLocked(StatusFlushing)
	b.mu.Unlock()

	observability.Flush().OnFlushStart(ctx, b.boardID, len(ops))
	start := time.Now()
	newVersion, err := b.remote.Patch(ctx, b.boardID, version, ops)
	observability.Flush().OnFlushComplete(ctx, b.boardID, len(ops), time.Since(start), err)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		var conflict *errors.VersionConflictError
		if stderrors.As(err, &conflict) {
			observability.Flush().OnConflict(ctx, b.boardID, conflict.Expected, conflict.Actual)
		}
		b.setStatusLocked(StatusError)
		return err
	}

	// Operations queued during the flight stay queued.
	b.queue = b.queue[len(ops):]
	b.version = newVersion
	if len(b.queue) == 0 {
		b.setStatusLocked(StatusIdle)
	} else {
		b.setStatusLocked(StatusQueuedRemote)
	}
	b.scheduleMirrorLocked()
	return nil
}

// Status returns the current save state.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Version returns the last acknowledged remote version.
func (b *Bridge) Version() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Queued returns the number of pending operations.
func (b *Bridge) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Document returns a copy of the bridge's view of the board document.
func (b *Bridge) Document() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return deepCopyMap(b.doc)
}

// OnStatusChange registers a callback fired whenever the status changes.
// The returned function unsubscribes.
func (b *Bridge) OnStatusChange(fn func(Status)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.statusFns[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.statusFns, id)
		b.mu.Unlock()
	}
}

// Close stops the flush timer. Pending operations remain in the queue; call
// FlushNow first for a clean shutdown.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
	// Let an in-flight mirror write land before the bridge goes away.
	b.mirrorWG.Wait()
}

func (b *Bridge) setStatusLocked(s Status) {
	if b.status == s {
		return
	}
	b.status = s
	fns := make([]func(Status), 0, len(b.statusFns))
	for _, fn := range b.statusFns {
		fns = append(fns, fn)
	}
	go func() {
		for _, fn := range fns {
			fn(s)
		}
	}()
}

// scheduleMirror snapshots the current state and hands it to the mirror
// writer. The caller never waits on the KV: a single goroutine drains
// pending snapshots, and a snapshot taken while a write is in flight
// replaces any one still waiting, so a burst of edits lands as one write.
func (b *Bridge) scheduleMirror() {
	b.mu.Lock()
	b.scheduleMirrorLocked()
	b.mu.Unlock()
}

// scheduleMirrorLocked is scheduleMirror for callers already holding b.mu.
func (b *Bridge) scheduleMirrorLocked() {
	if b.mirror == nil {
		return
	}
	st := &mirrorState{Version: b.version, Data: deepCopyMap(b.doc)}

	b.mirrorMu.Lock()
	b.mirrorPend = st
	if b.mirrorBusy {
		b.mirrorMu.Unlock()
		return
	}
	b.mirrorBusy = true
	b.mirrorWG.Add(1)
	b.mirrorMu.Unlock()
	go b.mirrorLoop()
}

// mirrorLoop writes pending snapshots until none remain.
func (b *Bridge) mirrorLoop() {
	defer b.mirrorWG.Done()
	for {
		b.mirrorMu.Lock()
		st := b.mirrorPend
		b.mirrorPend = nil
		if st == nil {
			b.mirrorBusy = false
			b.mirrorMu.Unlock()
			return
		}
		b.mirrorMu.Unlock()
		b.writeMirror(st)
	}
}

// writeMirror persists one snapshot locally. Failures are logged and
// swallowed; the mirror never gates interactive work.
func (b *Bridge) writeMirror(st *mirrorState) {
	raw, err := json.Marshal(st)
	if err != nil {
		if b.logger != nil {
			b.logger.Error("encode mirror", "board", b.boardID, "err", err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.mirror.Set(ctx, mirrorKey, raw); err != nil && b.logger != nil {
		b.logger.Debug("write mirror", "board", b.boardID, "err", err)
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return make(map[string]any)
	}
	raw, err := json.Marshal(m)
	if err != nil {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		out = make(map[string]any)
	}
	return out
}

func escapePointer(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
