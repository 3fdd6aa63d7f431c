package geometry

import (
	"math"

	"github.com/boardkit/boardkit/pkg/board"
)

// HitTest reports whether the point falls on the element's visual box.
// Rotated elements are tested by rotating the point into element-local space
// instead of testing the (larger) axis-aligned box.
func HitTest(e board.Element, p board.Point) bool {
	c := e.Base()
	if c.Angle != 0 {
		b, ok := unrotatedBounds(e)
		if !ok {
			return false
		}
		p = rotatePoint(p, b.CenterX(), b.CenterY(), -c.Angle)
		return b.Contains(p)
	}
	b, ok := BoundsOf(e)
	if !ok {
		return false
	}
	return b.Contains(p)
}

// TopmostHit returns the highest z-order element whose box contains the
// point, skipping locked and hidden elements. Render order ties break by id,
// same as Elements.SortByZ, so every client picks the same element.
func TopmostHit(els board.Elements, p board.Point) (board.Element, bool) {
	sorted := make(board.Elements, len(els))
	copy(sorted, els)
	sorted.SortByZ()
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		if e.Base().Locked || e.Base().Hidden {
			continue
		}
		if HitTest(e, p) {
			return e, true
		}
	}
	return nil, false
}

// unrotatedBounds is BoundsOf with the element's rotation ignored. Works on
// a copy so callers keep the no-mutation guarantee.
func unrotatedBounds(e board.Element) (Bounds, bool) {
	flat := e.Clone()
	flat.Base().Angle = 0
	return BoundsOf(flat)
}

func rotatePoint(p board.Point, cx, cy, angle float64) board.Point {
	sin, cos := math.Sincos(angle)
	dx, dy := p.X-cx, p.Y-cy
	return board.Point{X: cx + dx*cos - dy*sin, Y: cy + dx*sin + dy*cos}
}
