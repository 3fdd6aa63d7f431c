// Package geometry is the pure geometry kernel: bounding boxes, point
// containment and translation over board elements. Every function is
// deterministic and side-effect free; nothing here touches the document.
package geometry

import (
	"math"

	"github.com/boardkit/boardkit/pkg/board"
)

// Bounds is an axis-aligned box in world coordinates. Derived, never stored.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Edge accessors. Center values are used by the snap engine's 3x3 edge grid.

func (b Bounds) Left() float64    { return b.X }
func (b Bounds) Right() float64   { return b.X + b.Width }
func (b Bounds) Top() float64     { return b.Y }
func (b Bounds) Bottom() float64  { return b.Y + b.Height }
func (b Bounds) CenterX() float64 { return b.X + b.Width/2 }
func (b Bounds) CenterY() float64 { return b.Y + b.Height/2 }

// Contains reports whether the point lies inside the box, edges inclusive.
func (b Bounds) Contains(p board.Point) bool {
	return p.X >= b.X && p.X <= b.X+b.Width && p.Y >= b.Y && p.Y <= b.Y+b.Height
}

// Union returns the smallest box covering both.
func (b Bounds) Union(o Bounds) Bounds {
	x := math.Min(b.X, o.X)
	y := math.Min(b.Y, o.Y)
	return Bounds{
		X:      x,
		Y:      y,
		Width:  math.Max(b.Right(), o.Right()) - x,
		Height: math.Max(b.Bottom(), o.Bottom()) - y,
	}
}

// Pad grows the box by d on every side. Negative d shrinks it.
func (b Bounds) Pad(d float64) Bounds {
	return Bounds{X: b.X - d, Y: b.Y - d, Width: b.Width + 2*d, Height: b.Height + 2*d}
}

// Translate moves the box.
func (b Bounds) Translate(dx, dy float64) Bounds {
	return Bounds{X: b.X + dx, Y: b.Y + dy, Width: b.Width, Height: b.Height}
}

// Intersects reports whether the boxes overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.X < o.Right() && o.X < b.Right() && b.Y < o.Bottom() && o.Y < b.Bottom()
}

// BoundsOf computes the visual bounding box of an element. The second return
// is false only for degenerate linear elements with no points, which exist
// transiently while a stroke is being started.
//
// Stroke width pads the box by half the stroke on every side, so boxes align
// with what the user sees rather than with logical coordinates. Rotation is
// folded in by rotating the corners about the box center. Text, tiles,
// frames and embeds use their intrinsic box, unpadded.
func BoundsOf(e board.Element) (Bounds, bool) {
	c := e.Base()

	var b Bounds
	switch el := e.(type) {
	case *board.Line:
		return linearBounds(c, el.Points)
	case *board.Arrow:
		return linearBounds(c, el.Points)
	case *board.Pen:
		return linearBounds(c, el.Points)
	case *board.Laser:
		return linearBounds(c, el.Points)
	case *board.Text, *board.Tile, *board.Frame, *board.WebEmbed:
		b = Bounds{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height}
		return rotated(b, c.Angle), true
	default: // rectangle, diamond, ellipse
		b = Bounds{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height}.Pad(c.StrokeWidth / 2)
		return rotated(b, c.Angle), true
	}
}

func linearBounds(c *board.Core, points []board.Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	b := Bounds{
		X:      c.X + minX,
		Y:      c.Y + minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}.Pad(c.StrokeWidth / 2)
	return rotated(b, c.Angle), true
}

// rotated returns the axis-aligned box of b rotated by angle about its
// center. Identity for angle 0.
func rotated(b Bounds, angle float64) Bounds {
	if angle == 0 {
		return b
	}
	cx, cy := b.CenterX(), b.CenterY()
	sin, cos := math.Sincos(angle)
	corners := [4][2]float64{
		{b.X, b.Y}, {b.Right(), b.Y}, {b.Right(), b.Bottom()}, {b.X, b.Bottom()},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, corner := range corners {
		dx, dy := corner[0]-cx, corner[1]-cy
		x := cx + dx*cos - dy*sin
		y := cy + dx*sin + dy*cos
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return Bounds{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// BoundsOfAll unions the bounds of every element, skipping degenerates.
// ok is false when nothing had bounds.
func BoundsOfAll(els board.Elements) (Bounds, bool) {
	var acc Bounds
	found := false
	for _, e := range els {
		b, ok := BoundsOf(e)
		if !ok {
			continue
		}
		if !found {
			acc, found = b, true
			continue
		}
		acc = acc.Union(b)
	}
	return acc, found
}
