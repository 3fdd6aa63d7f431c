package sync

import (
	"context"
	"reflect"
	stdsync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/observability"
)

// DefaultSweepInterval is how often the ephemeral-element expiry sweep runs.
// Deliberately low frequency: expiry is checked per sweep, not per frame.
const DefaultSweepInterval = 500 * time.Millisecond

// Options configures a Session.
type Options struct {
	Room string
	User Participant

	// Transport connects the session to its room. Nil runs the session
	// offline: all operations work, nothing replicates.
	Transport Transport

	// Logger receives debug/error output. Nil disables logging.
	Logger *log.Logger

	// FrameInterval overrides the presence coalescing window.
	// Defaults to DefaultFrameInterval.
	FrameInterval time.Duration

	// SweepInterval overrides the expiry sweep period.
	// Defaults to DefaultSweepInterval.
	SweepInterval time.Duration
}

// Session is one participant's connection to a shared board. It owns the
// local replica of the document, relays local intents, merges remote writes
// and tracks room awareness.
//
// Change callbacks run on the goroutine that caused the change: local
// mutators invoke them inline, remote changes invoke them from the receive
// loop. Callbacks must not block.
type Session struct {
	room      string
	user      Participant
	doc       *Document
	transport Transport
	logger    *log.Logger

	mu             stdsync.Mutex
	nextListener   int
	elemListeners  map[int]func(board.Elements, Origin)
	awareListeners map[int]func([]PresenceState)
	awareness      map[string]PresenceState

	// pending presence fields, coalesced by the frame limiter
	cursor   *board.Point
	drawing  board.Element
	viewport *Viewport

	limiter *frameLimiter

	syncedOnce stdsync.Once
	synced     chan struct{}

	done      chan struct{}
	closeOnce stdsync.Once
	wg        stdsync.WaitGroup
}

// NewSession joins a room. With a transport it immediately requests catch-up
// from peers and starts receiving; ElementsCtx blocks until that first
// response lands.
func NewSession(opts Options) *Session {
	s := &Session{
		room:           opts.Room,
		user:           opts.User,
		doc:            NewDocument(),
		transport:      opts.Transport,
		logger:         opts.Logger,
		elemListeners:  make(map[int]func(board.Elements, Origin)),
		awareListeners: make(map[int]func([]PresenceState)),
		awareness:      make(map[string]PresenceState),
		synced:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	s.limiter = newFrameLimiter(opts.FrameInterval, s.flushPresence)

	if s.transport == nil {
		s.syncedOnce.Do(func() { close(s.synced) })
	} else {
		s.send(Message{Type: MsgSyncRequest, Room: s.room, From: s.user.ID})
		s.wg.Add(1)
		go s.readLoop()
	}

	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = DefaultSweepInterval
	}
	s.wg.Add(1)
	go s.sweepLoop(sweep)

	return s
}

// UserInfo returns the local participant's identity.
func (s *Session) UserInfo() Participant { return s.user }

// Document returns the session's document handle. Read-only consumers use
// snapshots; writes go through the session so they replicate.
func (s *Session) Document() *Document { return s.doc }

// =============================================================================
// Document reads
// =============================================================================

// Elements returns the merged live document, deduplicated by id and in
// deterministic render order.
func (s *Session) Elements() board.Elements {
	return s.doc.Snapshot()
}

// ElementsCtx returns the document once initial catch-up has completed, so a
// late joiner sees remote state instead of an empty board. Returns the
// current (possibly partial) document with ctx.Err() when the context ends
// first.
func (s *Session) ElementsCtx(ctx context.Context) (board.Elements, error) {
	select {
	case <-s.synced:
		return s.doc.Snapshot(), nil
	case <-s.done:
		return s.doc.Snapshot(), nil
	case <-ctx.Done():
		return s.doc.Snapshot(), ctx.Err()
	}
}

// =============================================================================
// Document writes
// =============================================================================

// SetElements replaces the full document with next. The replacement is
// diffed against the current state internally: unchanged elements produce no
// traffic, changed and new elements replicate as writes, and elements absent
// from next replicate as deletion tombstones. Duplicate ids in next collapse
// to the last entry.
func (s *Session) SetElements(next board.Elements) {
	next = next.Dedupe()

	var delta board.Elements
	seen := make(map[string]bool, len(next))
	for _, e := range next {
		seen[e.Base().ID] = true
		cur, ok := s.doc.get(e.Base().ID)
		if ok && elementsEqual(cur, e) {
			continue
		}
		w := e.Clone()
		board.Touch(w, s.user.ID, s.doc.tick())
		delta = append(delta, w)
	}
	for _, e := range s.doc.Snapshot() {
		if seen[e.Base().ID] {
			continue
		}
		t := e.Clone()
		t.Base().Deleted = true
		board.Touch(t, s.user.ID, s.doc.tick())
		delta = append(delta, t)
	}
	s.commit(delta)
}

// Upsert applies element writes as one local intent.
func (s *Session) Upsert(els ...board.Element) {
	delta := make(board.Elements, 0, len(els))
	for _, e := range els {
		w := e.Clone()
		board.Touch(w, s.user.ID, s.doc.tick())
		delta = append(delta, w)
	}
	s.commit(delta)
}

// Delete tombstones the given ids as one atomic intent. Unknown and
// already-deleted ids are skipped, so repeated deletes stay idempotent.
func (s *Session) Delete(ids ...string) {
	var delta board.Elements
	for _, id := range ids {
		cur, ok := s.doc.get(id)
		if !ok || cur.Base().Deleted {
			continue
		}
		t := cur.Clone()
		t.Base().Deleted = true
		board.Touch(t, s.user.ID, s.doc.tick())
		delta = append(delta, t)
	}
	s.commit(delta)
}

// commit merges a local delta and fans it out: listeners first (optimistic,
// immediately visible), then the room.
func (s *Session) commit(delta board.Elements) {
	if len(delta) == 0 {
		return
	}
	applied, dropped := s.doc.merge(delta)
	observability.Sync().OnMerge(context.Background(), s.room, applied, dropped)
	if applied == 0 {
		return
	}
	s.notifyElements(Origin{Remote: false, Site: s.user.ID})
	s.send(Message{Type: MsgElements, Room: s.room, From: s.user.ID, Elements: delta})
}

// elementsEqual compares two elements including their version metadata.
// An untouched element read from a snapshot compares equal to its stored
// counterpart, so full-document writes stay cheap.
func elementsEqual(a, b board.Element) bool {
	return reflect.DeepEqual(a, b)
}

// =============================================================================
// Listeners
// =============================================================================

// OnElementsChange registers a callback fired after every document change,
// local or remote. The returned function unsubscribes.
func (s *Session) OnElementsChange(fn func(board.Elements, Origin)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.elemListeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.elemListeners, id)
		s.mu.Unlock()
	}
}

// OnAwarenessChange registers a callback fired on any participant's presence
// update. The returned function unsubscribes.
func (s *Session) OnAwarenessChange(fn func([]PresenceState)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.awareListeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.awareListeners, id)
		s.mu.Unlock()
	}
}

func (s *Session) notifyElements(origin Origin) {
	snapshot := s.doc.Snapshot()
	s.mu.Lock()
	fns := make([]func(board.Elements, Origin), 0, len(s.elemListeners))
	for _, fn := range s.elemListeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snapshot, origin)
	}
}

func (s *Session) notifyAwareness() {
	states := s.AwarenessStates()
	s.mu.Lock()
	fns := make([]func([]PresenceState), 0, len(s.awareListeners))
	for _, fn := range s.awareListeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(states)
	}
}

// AwarenessStates returns every known participant's presence, local included.
func (s *Session) AwarenessStates() []PresenceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PresenceState, 0, len(s.awareness))
	for _, st := range s.awareness {
		out = append(out, st)
	}
	return out
}

// =============================================================================
// Presence writes (write-only, frame-coalesced)
// =============================================================================

// UpdateCursor records the local cursor position for the next presence
// broadcast. Nil clears it.
func (s *Session) UpdateCursor(p *board.Point) {
	s.mu.Lock()
	s.cursor = p
	s.mu.Unlock()
	s.limiter.request()
}

// UpdateDrawingElement records the local in-progress drawing for the next
// presence broadcast. Nil clears it. The element never enters the document
// through this path.
func (s *Session) UpdateDrawingElement(e board.Element) {
	s.mu.Lock()
	s.drawing = e
	s.mu.Unlock()
	s.limiter.request()
}

// UpdateViewport records the local pan/zoom for the next presence broadcast.
func (s *Session) UpdateViewport(panX, panY, zoom float64) {
	s.mu.Lock()
	s.viewport = &Viewport{PanX: panX, PanY: panY, Zoom: zoom}
	s.mu.Unlock()
	s.limiter.request()
}

// flushPresence runs once per frame with the latest pending values.
func (s *Session) flushPresence() {
	s.mu.Lock()
	state := PresenceState{
		Participant: s.user,
		Cursor:      s.cursor,
		Drawing:     s.drawing,
		Viewport:    s.viewport,
		UpdatedAt:   time.Now(),
	}
	s.awareness[s.user.ID] = state
	s.mu.Unlock()

	fields := 0
	if state.Cursor != nil {
		fields++
	}
	if state.Drawing != nil {
		fields++
	}
	if state.Viewport != nil {
		fields++
	}
	observability.Sync().OnBroadcast(context.Background(), s.room, fields)

	s.notifyAwareness()
	s.send(Message{Type: MsgPresence, Room: s.room, From: s.user.ID, Presence: &state})
}

// =============================================================================
// Network
// =============================================================================

// send transmits best-effort: transport errors are logged and dropped.
// Presence is never retried; element convergence is covered by catch-up.
func (s *Session) send(msg Message) {
	if s.transport == nil {
		return
	}
	if err := s.transport.Send(msg); err != nil && s.logger != nil {
		s.logger.Debug("send failed", "room", s.room, "type", msg.Type, "err", err)
	}
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.transport.Receive():
			if !ok {
				return
			}
			s.handle(msg)
		}
	}
}

func (s *Session) handle(msg Message) {
	if msg.From == s.user.ID {
		return // own messages echo back on some transports
	}
	switch msg.Type {
	case MsgElements, MsgSyncResponse:
		applied, dropped := s.doc.merge(msg.Elements)
		observability.Sync().OnMerge(context.Background(), s.room, applied, dropped)
		if msg.Type == MsgSyncResponse {
			s.syncedOnce.Do(func() { close(s.synced) })
		}
		if applied > 0 {
			s.notifyElements(Origin{Remote: true, Site: msg.From})
		}
	case MsgSyncRequest:
		// Tombstones included: late joiners must observe deletions.
		s.send(Message{
			Type:     MsgSyncResponse,
			Room:     s.room,
			From:     s.user.ID,
			Elements: s.doc.snapshotAll(),
		})
	case MsgPresence:
		if msg.Presence == nil {
			return
		}
		s.mu.Lock()
		s.awareness[msg.From] = *msg.Presence
		s.mu.Unlock()
		s.notifyAwareness()
	case MsgLeave:
		s.mu.Lock()
		_, had := s.awareness[msg.From]
		delete(s.awareness, msg.From)
		s.mu.Unlock()
		if had {
			s.notifyAwareness()
		}
	}
}

// =============================================================================
// Ephemeral expiry
// =============================================================================

func (s *Session) sweepLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.sweepExpired(now)
		}
	}
}

// sweepExpired tombstones ephemeral elements past their TTL. One batch, one
// intent; already-deleted elements are skipped so an element expires exactly
// once.
func (s *Session) sweepExpired(now time.Time) {
	var expired []string
	for _, e := range s.doc.Snapshot() {
		laser, ok := e.(*board.Laser)
		if !ok {
			continue
		}
		if !laser.ExpiresAt.IsZero() && laser.ExpiresAt.Before(now) {
			expired = append(expired, laser.ID)
		}
	}
	if len(expired) == 0 {
		return
	}
	s.Delete(expired...)
	observability.Sync().OnExpiry(context.Background(), s.room, len(expired))
}

// Close leaves the room, announcing departure so peers drop this
// participant's presence, and stops background work.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.limiter.stop()
		s.send(Message{Type: MsgLeave, Room: s.room, From: s.user.ID})
		close(s.done)
		if s.transport != nil {
			err = s.transport.Close()
		}
		s.wg.Wait()
	})
	return err
}
