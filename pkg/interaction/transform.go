package interaction

import (
	"math"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/geometry"
)

const minElementSize = 1.0

func (m *Machine) beginTransform(h Handle, p board.Point) {
	b, ok := m.selectionBounds()
	if !ok {
		return
	}
	m.gestureStart = p
	m.startBounds = b
	m.activeHandle = h
	m.originals = make(map[string]board.Element, len(m.selection))
	m.preview = make(map[string]board.Element, len(m.selection))
	for _, e := range m.syncer.Elements() {
		id := e.Base().ID
		if m.selection[id] {
			m.originals[id] = e.Clone()
			m.preview[id] = e.Clone()
		}
	}
	if h == HandleRotate {
		m.state = StateRotating
		m.startAngle = math.Atan2(p.Y-b.CenterY(), p.X-b.CenterX())
	} else {
		m.state = StateResizing
	}
}

// resizeTo maps the original selection bounds onto the bounds implied by the
// dragged handle and scales every selected element through that mapping.
func (m *Machine) resizeTo(p board.Point, mods Modifiers) {
	if m.startBounds.Width <= 0 || m.startBounds.Height <= 0 {
		return
	}
	b := m.resizedBounds(p, mods)
	sx := b.Width / m.startBounds.Width
	sy := b.Height / m.startBounds.Height

	for id, orig := range m.originals {
		next := orig.Clone()
		c := next.Base()
		oc := orig.Base()
		c.X = b.X + (oc.X-m.startBounds.X)*sx
		c.Y = b.Y + (oc.Y-m.startBounds.Y)*sy
		c.Width = oc.Width * sx
		c.Height = oc.Height * sy
		scalePoints(next, orig, sx, sy)
		m.preview[id] = next
	}
}

// resizedBounds moves the edges attached to the active handle by the pointer
// delta. Width and height never collapse below minElementSize; shift keeps
// the original aspect ratio on corner handles.
func (m *Machine) resizedBounds(p board.Point, mods Modifiers) geometry.Bounds {
	dx := p.X - m.gestureStart.X
	dy := p.Y - m.gestureStart.Y

	left := m.startBounds.Left()
	right := m.startBounds.Right()
	top := m.startBounds.Top()
	bottom := m.startBounds.Bottom()

	switch m.activeHandle {
	case HandleTopLeft:
		left += dx
		top += dy
	case HandleTop:
		top += dy
	case HandleTopRight:
		right += dx
		top += dy
	case HandleRight:
		right += dx
	case HandleBottomRight:
		right += dx
		bottom += dy
	case HandleBottom:
		bottom += dy
	case HandleBottomLeft:
		left += dx
		bottom += dy
	case HandleLeft:
		left += dx
	}

	if right-left < minElementSize {
		if m.activeHandle == HandleTopLeft || m.activeHandle == HandleLeft || m.activeHandle == HandleBottomLeft {
			left = right - minElementSize
		} else {
			right = left + minElementSize
		}
	}
	if bottom-top < minElementSize {
		if m.activeHandle == HandleTopLeft || m.activeHandle == HandleTop || m.activeHandle == HandleTopRight {
			top = bottom - minElementSize
		} else {
			bottom = top + minElementSize
		}
	}

	b := geometry.Bounds{X: left, Y: top, Width: right - left, Height: bottom - top}

	if mods.Shift && isCorner(m.activeHandle) {
		ratio := m.startBounds.Width / m.startBounds.Height
		// Grow to the larger implied dimension, anchored at the fixed corner.
		if b.Width/b.Height > ratio {
			newH := b.Width / ratio
			if m.activeHandle == HandleTopLeft || m.activeHandle == HandleTopRight {
				b.Y = bottom - newH
			}
			b.Height = newH
		} else {
			newW := b.Height * ratio
			if m.activeHandle == HandleTopLeft || m.activeHandle == HandleBottomLeft {
				b.X = right - newW
			}
			b.Width = newW
		}
	}
	return b
}

func isCorner(h Handle) bool {
	switch h {
	case HandleTopLeft, HandleTopRight, HandleBottomLeft, HandleBottomRight:
		return true
	}
	return false
}

func scalePoints(next, orig board.Element, sx, sy float64) {
	switch d := next.(type) {
	case *board.Line:
		d.Points = scaled(orig.(*board.Line).Points, sx, sy)
	case *board.Arrow:
		d.Points = scaled(orig.(*board.Arrow).Points, sx, sy)
	case *board.Pen:
		d.Points = scaled(orig.(*board.Pen).Points, sx, sy)
	case *board.Laser:
		d.Points = scaled(orig.(*board.Laser).Points, sx, sy)
	}
}

func scaled(pts []board.Point, sx, sy float64) []board.Point {
	out := make([]board.Point, len(pts))
	for i, pt := range pts {
		out[i] = board.Point{X: pt.X * sx, Y: pt.Y * sy}
	}
	return out
}

// rotateTo spins the selection around its combined center. Shift snaps the
// rotation to 15 degree steps.
func (m *Machine) rotateTo(p board.Point, mods Modifiers) {
	cx := m.startBounds.CenterX()
	cy := m.startBounds.CenterY()
	delta := math.Atan2(p.Y-cy, p.X-cx) - m.startAngle
	if mods.Shift {
		step := math.Pi / 12
		delta = math.Round(delta/step) * step
	}
	sin, cos := math.Sin(delta), math.Cos(delta)

	for id, orig := range m.originals {
		next := orig.Clone()
		c := next.Base()
		oc := orig.Base()
		// Element centers orbit the selection center.
		ecx := oc.X + oc.Width/2
		ecy := oc.Y + oc.Height/2
		rx := cx + (ecx-cx)*cos - (ecy-cy)*sin
		ry := cy + (ecx-cx)*sin + (ecy-cy)*cos
		c.X = rx - oc.Width/2
		c.Y = ry - oc.Height/2
		c.Angle = oc.Angle + delta
		m.preview[id] = next
	}
}

func (m *Machine) commitTransform() {
	defer func() {
		m.originals = nil
		m.preview = nil
		m.activeHandle = HandleNone
	}()
	changed := make(board.Elements, 0, len(m.preview))
	for id, e := range m.preview {
		if sameGeometry(m.originals[id], e) {
			continue
		}
		changed = append(changed, e)
		m.invalidate(id)
	}
	if len(changed) > 0 {
		m.syncer.Upsert(changed...)
	}
}

func sameGeometry(a, b board.Element) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ac, bc := a.Base(), b.Base()
	return ac.X == bc.X && ac.Y == bc.Y &&
		ac.Width == bc.Width && ac.Height == bc.Height &&
		ac.Angle == bc.Angle
}
