package interaction

import (
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/geometry"
	"github.com/boardkit/boardkit/pkg/shape"
	"github.com/boardkit/boardkit/pkg/snap"
)

const (
	// DefaultSnapThreshold is the snap search radius in canvas pixels.
	DefaultSnapThreshold = 5.0
	// DefaultLaserTTL is how long a laser stroke stays visible.
	DefaultLaserTTL = 2 * time.Second

	// handleSize is the hit tolerance around a resize handle.
	handleSize = 8.0
	// rotateOffset is how far the rotation grip sits above the bounds.
	rotateOffset = 24.0
	// minDragDistance filters accidental jitter before a drag starts moving.
	minDragDistance = 1.0
)

// Syncer is the document side the machine talks to. Committed gestures
// become element intents; transient movement becomes presence.
// *sync.Session satisfies it.
type Syncer interface {
	Elements() board.Elements
	Upsert(els ...board.Element)
	Delete(ids ...string)
	UpdateDrawingElement(e board.Element)
	UpdateCursor(p *board.Point)
	UpdateViewport(panX, panY, zoom float64)
}

// Options configures a Machine.
type Options struct {
	Syncer Syncer
	// Shapes is invalidated for every element the machine mutates. Optional.
	Shapes *shape.Cache
	Logger *log.Logger
	// Site identifies the local participant, used to claim text edits.
	Site string

	SnapThreshold float64
	LaserTTL      time.Duration

	// DropZone is the removal region: releasing a drag inside it deletes
	// the whole selection as one intent. Nil disables the zone.
	DropZone *geometry.Bounds
}

// Machine is the canvas interaction state machine. Not goroutine-safe: it
// belongs to the single input-handling loop.
type Machine struct {
	syncer Syncer
	shapes *shape.Cache
	logger *log.Logger
	site   string

	threshold float64
	laserTTL  time.Duration
	dropZone  *geometry.Bounds

	tool  Tool
	state State

	selection map[string]bool

	// drawing
	draft      board.Element
	draftStart board.Point

	// dragging / resizing / rotating
	gestureStart board.Point
	originals    map[string]board.Element
	preview      map[string]board.Element
	activeHandle Handle
	startBounds  geometry.Bounds
	startAngle   float64
	guides       snap.Result

	// eraser
	marked map[string]bool

	// text editing
	editingID string
	editText  string
	textDraft *board.Text

	// viewport
	panX, panY, zoom float64
}

// NewMachine returns an idle machine with the select tool active.
func NewMachine(opts Options) *Machine {
	m := &Machine{
		syncer:    opts.Syncer,
		shapes:    opts.Shapes,
		logger:    opts.Logger,
		site:      opts.Site,
		threshold: opts.SnapThreshold,
		laserTTL:  opts.LaserTTL,
		dropZone:  opts.DropZone,
		tool:      ToolSelect,
		state:     StateIdle,
		selection: make(map[string]bool),
		marked:    make(map[string]bool),
		zoom:      1,
	}
	if m.threshold <= 0 {
		m.threshold = DefaultSnapThreshold
	}
	if m.laserTTL <= 0 {
		m.laserTTL = DefaultLaserTTL
	}
	return m
}

// =============================================================================
// Introspection for the renderer
// =============================================================================

func (m *Machine) Tool() Tool   { return m.tool }
func (m *Machine) State() State { return m.state }

// Selection returns the selected element ids.
func (m *Machine) Selection() []string {
	out := make([]string, 0, len(m.selection))
	for id := range m.selection {
		out = append(out, id)
	}
	return out
}

// Draft returns the element being drawn, nil when not drawing.
func (m *Machine) Draft() board.Element {
	if m.draft == nil {
		return nil
	}
	return m.draft.Clone()
}

// Preview returns transient replacements for elements mid-gesture, keyed by
// id. Renderers draw these instead of the document versions.
func (m *Machine) Preview() map[string]board.Element {
	if len(m.preview) == 0 {
		return nil
	}
	out := make(map[string]board.Element, len(m.preview))
	for id, e := range m.preview {
		out[id] = e.Clone()
	}
	return out
}

// Guides returns the active snap guides for rendering.
func (m *Machine) Guides() snap.Result { return m.guides }

// Marked returns the ids currently marked by the eraser.
func (m *Machine) Marked() []string {
	out := make([]string, 0, len(m.marked))
	for id := range m.marked {
		out = append(out, id)
	}
	return out
}

// Viewport returns the current pan and zoom.
func (m *Machine) Viewport() (panX, panY, zoom float64) {
	return m.panX, m.panY, m.zoom
}

// =============================================================================
// Tool switching
// =============================================================================

// SetTool switches the active tool, cancelling any gesture in progress.
func (m *Machine) SetTool(t Tool) {
	if m.tool == t {
		return
	}
	m.Cancel()
	m.tool = t
	if t != ToolSelect {
		m.selection = make(map[string]bool)
	}
}

// =============================================================================
// Pointer events
// =============================================================================

// PointerDown starts a gesture at p in canvas coordinates.
func (m *Machine) PointerDown(p board.Point, mods Modifiers) {
	if m.state != StateIdle {
		return
	}
	switch m.tool {
	case ToolSelect:
		m.selectDown(p, mods)
	case ToolEraser:
		m.state = StateErasing
		m.marked = make(map[string]bool)
		m.eraseAt(p)
	case ToolHand:
		m.state = StatePanning
		m.gestureStart = p
	case ToolText:
		m.textDown(p)
	default:
		m.beginDraft(p)
	}
}

// PointerMove advances the gesture. Transient geometry goes out as presence
// only; the document is untouched until PointerUp.
func (m *Machine) PointerMove(p board.Point, mods Modifiers) {
	m.syncer.UpdateCursor(&board.Point{X: p.X, Y: p.Y})

	switch m.state {
	case StateDrawing:
		m.growDraft(p, mods)
		if m.draft != nil {
			m.syncer.UpdateDrawingElement(m.draft.Clone())
		}
	case StateDragging:
		m.dragTo(p)
	case StateResizing:
		m.resizeTo(p, mods)
	case StateRotating:
		m.rotateTo(p, mods)
	case StateErasing:
		m.eraseAt(p)
	case StatePanning:
		m.panX += p.X - m.gestureStart.X
		m.panY += p.Y - m.gestureStart.Y
		m.gestureStart = p
		m.syncer.UpdateViewport(m.panX, m.panY, m.zoom)
	}
}

// PointerUp commits the gesture as a single mutation intent and returns the
// machine to idle.
func (m *Machine) PointerUp(p board.Point, mods Modifiers) {
	switch m.state {
	case StateDrawing:
		m.commitDraft()
	case StateDragging:
		m.commitDrag(p)
	case StateResizing, StateRotating:
		m.commitTransform()
	case StateErasing:
		m.commitErase()
	}
	m.state = StateIdle
	m.guides = snap.Result{}
}

// =============================================================================
// Keyboard
// =============================================================================

// KeyDown handles a keyboard shortcut.
func (m *Machine) KeyDown(k Key, mods Modifiers) {
	switch k {
	case KeyDelete, KeyBackspace:
		if m.editingID != "" {
			return // typing, not deleting elements
		}
		m.deleteSelection()
	case KeyEscape:
		m.Cancel()
	}
}

// Wheel handles scroll input: with the primary modifier it zooms around the
// cursor, otherwise it pans. Viewport changes are presence, never document
// mutations.
func (m *Machine) Wheel(p board.Point, deltaX, deltaY float64, mods Modifiers) {
	if mods.Primary {
		factor := math.Exp(-deltaY / 100)
		next := m.zoom * factor
		next = math.Max(0.1, math.Min(10, next))
		// Keep the point under the cursor stationary.
		m.panX = p.X - (p.X-m.panX)*(next/m.zoom)
		m.panY = p.Y - (p.Y-m.panY)*(next/m.zoom)
		m.zoom = next
	} else {
		m.panX -= deltaX
		m.panY -= deltaY
	}
	m.syncer.UpdateViewport(m.panX, m.panY, m.zoom)
}

// Cancel abandons any in-progress gesture or text edit without emitting a
// document mutation.
func (m *Machine) Cancel() {
	if m.editingID != "" {
		m.cancelTextEdit()
	}
	m.draft = nil
	m.originals = nil
	m.preview = nil
	m.marked = make(map[string]bool)
	m.activeHandle = HandleNone
	m.guides = snap.Result{}
	m.state = StateIdle
	m.syncer.UpdateDrawingElement(nil)
}

// =============================================================================
// Select tool: hit test, drag, transform handles
// =============================================================================

func (m *Machine) selectDown(p board.Point, mods Modifiers) {
	// Handles of the current selection take priority over hit-testing.
	if h := m.handleAt(p); h != HandleNone {
		m.beginTransform(h, p)
		return
	}

	hit, ok := geometry.TopmostHit(m.syncer.Elements().Alive(), p)
	if !ok {
		if !mods.Shift {
			m.selection = make(map[string]bool)
		}
		return
	}
	id := hit.Base().ID
	if mods.Shift {
		if m.selection[id] {
			delete(m.selection, id)
			return
		}
		m.selection[id] = true
	} else if !m.selection[id] {
		m.selection = map[string]bool{id: true}
	}
	m.beginDrag(p)
}

func (m *Machine) beginDrag(p board.Point) {
	m.state = StateDragging
	m.gestureStart = p
	m.originals = make(map[string]board.Element, len(m.selection))
	m.preview = make(map[string]board.Element, len(m.selection))
	for _, e := range m.syncer.Elements() {
		id := e.Base().ID
		if m.selection[id] {
			m.originals[id] = e.Clone()
			m.preview[id] = e.Clone()
		}
	}
}

func (m *Machine) dragTo(p board.Point) {
	dx := p.X - m.gestureStart.X
	dy := p.Y - m.gestureStart.Y
	if math.Abs(dx) < minDragDistance && math.Abs(dy) < minDragDistance {
		return
	}

	moved := make(board.Elements, 0, len(m.originals))
	for _, e := range m.originals {
		moved = append(moved, geometry.Translate(e, dx, dy))
	}
	dragBounds, ok := geometry.BoundsOfAll(moved)
	if ok {
		m.guides = snap.FindGuides(dragBounds, m.syncer.Elements().Alive(), m.selection, m.threshold)
		dx += m.guides.DeltaX
		dy += m.guides.DeltaY
	} else {
		m.guides = snap.Result{}
	}

	for id, e := range m.originals {
		m.preview[id] = geometry.Translate(e, dx, dy)
	}
}

func (m *Machine) commitDrag(p board.Point) {
	defer func() {
		m.originals = nil
		m.preview = nil
	}()

	// Releasing over the removal region deletes the whole selection at once.
	if m.dropZone != nil && m.dropZone.Contains(p) {
		m.deleteSelection()
		return
	}

	changed := make(board.Elements, 0, len(m.preview))
	for id, e := range m.preview {
		orig := m.originals[id]
		if orig != nil && orig.Base().X == e.Base().X && orig.Base().Y == e.Base().Y {
			continue
		}
		changed = append(changed, e)
		m.invalidate(id)
	}
	if len(changed) > 0 {
		m.syncer.Upsert(changed...)
	}
}

// deleteSelection removes every selected element as one intent.
func (m *Machine) deleteSelection() {
	if len(m.selection) == 0 {
		return
	}
	ids := make([]string, 0, len(m.selection))
	for id := range m.selection {
		ids = append(ids, id)
		m.invalidate(id)
	}
	m.selection = make(map[string]bool)
	m.syncer.Delete(ids...)
}

// handleAt returns the resize or rotate handle under p for the current
// selection, HandleNone when p misses them all.
func (m *Machine) handleAt(p board.Point) Handle {
	if len(m.selection) == 0 {
		return HandleNone
	}
	b, ok := m.selectionBounds()
	if !ok {
		return HandleNone
	}
	type anchor struct {
		h    Handle
		x, y float64
	}
	anchors := []anchor{
		{HandleTopLeft, b.Left(), b.Top()},
		{HandleTop, b.CenterX(), b.Top()},
		{HandleTopRight, b.Right(), b.Top()},
		{HandleRight, b.Right(), b.CenterY()},
		{HandleBottomRight, b.Right(), b.Bottom()},
		{HandleBottom, b.CenterX(), b.Bottom()},
		{HandleBottomLeft, b.Left(), b.Bottom()},
		{HandleLeft, b.Left(), b.CenterY()},
		{HandleRotate, b.CenterX(), b.Top() - rotateOffset},
	}
	for _, a := range anchors {
		if math.Abs(p.X-a.x) <= handleSize && math.Abs(p.Y-a.y) <= handleSize {
			return a.h
		}
	}
	return HandleNone
}

func (m *Machine) selectionBounds() (geometry.Bounds, bool) {
	els := make(board.Elements, 0, len(m.selection))
	for _, e := range m.syncer.Elements() {
		if m.selection[e.Base().ID] {
			els = append(els, e)
		}
	}
	return geometry.BoundsOfAll(els)
}

// =============================================================================
// Drawing tools
// =============================================================================

func (m *Machine) beginDraft(p board.Point) {
	kind := m.tool.kind()
	if kind == "" {
		return
	}
	e := board.New(kind, m.site)
	c := e.Base()
	c.X = p.X
	c.Y = p.Y

	switch d := e.(type) {
	case *board.Line:
		d.Points = []board.Point{{X: 0, Y: 0}}
	case *board.Arrow:
		d.Points = []board.Point{{X: 0, Y: 0}}
	case *board.Pen:
		d.Points = []board.Point{{X: 0, Y: 0}}
	case *board.Laser:
		d.Points = []board.Point{{X: 0, Y: 0}}
		d.ExpiresAt = time.Now().Add(m.laserTTL)
	}

	m.draft = e
	m.draftStart = p
	m.state = StateDrawing
}

func (m *Machine) growDraft(p board.Point, mods Modifiers) {
	if m.draft == nil {
		return
	}
	switch d := m.draft.(type) {
	case *board.Pen:
		d.Points = append(d.Points, board.Point{X: p.X - d.X, Y: p.Y - d.Y})
	case *board.Laser:
		d.Points = append(d.Points, board.Point{X: p.X - d.X, Y: p.Y - d.Y})
		d.ExpiresAt = time.Now().Add(m.laserTTL)
	case *board.Line:
		d.Points = twoPoint(p, m.draftStart, mods)
	case *board.Arrow:
		d.Points = twoPoint(p, m.draftStart, mods)
	default:
		c := m.draft.Base()
		w := p.X - m.draftStart.X
		h := p.Y - m.draftStart.Y
		if mods.Shift {
			side := math.Max(math.Abs(w), math.Abs(h))
			w = math.Copysign(side, w)
			h = math.Copysign(side, h)
		}
		c.X = math.Min(m.draftStart.X, m.draftStart.X+w)
		c.Y = math.Min(m.draftStart.Y, m.draftStart.Y+h)
		c.Width = math.Abs(w)
		c.Height = math.Abs(h)
	}
}

// twoPoint builds the endpoint list of a line or arrow draft. Shift locks
// the segment to 45 degree increments.
func twoPoint(p, start board.Point, mods Modifiers) []board.Point {
	dx := p.X - start.X
	dy := p.Y - start.Y
	if mods.Shift {
		angle := math.Atan2(dy, dx)
		step := math.Pi / 4
		snapped := math.Round(angle/step) * step
		length := math.Hypot(dx, dy)
		dx = length * math.Cos(snapped)
		dy = length * math.Sin(snapped)
	}
	return []board.Point{{X: 0, Y: 0}, {X: dx, Y: dy}}
}

func (m *Machine) commitDraft() {
	defer func() {
		m.draft = nil
		m.syncer.UpdateDrawingElement(nil)
	}()
	if m.draft == nil {
		return
	}
	if _, ok := geometry.BoundsOf(m.draft); !ok {
		return // degenerate, nothing to commit
	}
	c := m.draft.Base()
	if !c.Type.IsLinear() && (c.Width < 1 || c.Height < 1) {
		return // a stray click, not a shape
	}
	m.invalidate(c.ID)
	m.syncer.Upsert(m.draft)
	if m.tool != ToolPen && m.tool != ToolLaser && m.tool != ToolEraser {
		m.selection = map[string]bool{c.ID: true}
		m.tool = ToolSelect
	}
}

// =============================================================================
// Eraser
// =============================================================================

func (m *Machine) eraseAt(p board.Point) {
	hit, ok := geometry.TopmostHit(m.syncer.Elements().Alive(), p)
	if !ok {
		return
	}
	m.marked[hit.Base().ID] = true
}

func (m *Machine) commitErase() {
	if len(m.marked) == 0 {
		return
	}
	ids := make([]string, 0, len(m.marked))
	for id := range m.marked {
		ids = append(ids, id)
		m.invalidate(id)
	}
	m.marked = make(map[string]bool)
	m.syncer.Delete(ids...)
}

// invalidate drops any cached shape for a mutated element.
func (m *Machine) invalidate(id string) {
	if m.shapes != nil {
		m.shapes.Invalidate(id)
	}
}
