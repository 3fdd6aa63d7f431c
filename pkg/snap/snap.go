// Package snap computes alignment guides and snap deltas for a dragged
// selection.
//
// For each axis the engine compares the three reference edges of the dragged
// bounds (left/center/right, top/middle/bottom) against the same edges of
// every eligible candidate element. The minimum-distance pair within the
// threshold wins; ties keep the first candidate found, which is
// deterministic because candidates are scanned in slice order. When no edge
// aligns on an axis the engine falls back to gap matching: equalizing the
// space between two flanking neighbors, or reproducing an existing gap when
// only one neighbor flanks the selection.
//
// The engine never mutates elements. Callers apply the returned deltas to
// the dragged bounds before committing.
package snap

import (
	"math"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/geometry"
)

// Axis distinguishes vertical guides (snapping X) from horizontal (Y).
type Axis int

// Axes.
const (
	AxisX Axis = iota // vertical guide line, snapped X position
	AxisY             // horizontal guide line, snapped Y position
)

// GuideOverhang extends each guide line past the combined extent of the
// elements it aligns, in world units.
const GuideOverhang = 8.0

// Guide is one alignment guide line. For AxisX the line is vertical at Pos
// and spans Start..End in Y; for AxisY the reverse.
type Guide struct {
	Axis  Axis
	Pos   float64
	Start float64
	End   float64
}

// GapSpan is one rendered gap segment of a distance guide: From..To along
// the axis at the Cross position on the other axis.
type GapSpan struct {
	From  float64
	To    float64
	Cross float64
}

// GapGuide annotates an equal-spacing or reproduced-gap snap.
type GapGuide struct {
	Axis  Axis
	Gap   float64
	Spans []GapSpan
}

// Result is the outcome of one FindGuides call.
type Result struct {
	Guides    []Guide
	GapGuides []GapGuide
	// DeltaX and DeltaY move the dragged bounds onto the snapped position.
	// Zero when the corresponding axis found nothing within the threshold.
	DeltaX float64
	DeltaY float64
	// SnappedX and SnappedY distinguish "no snap" from a genuine zero delta.
	SnappedX bool
	SnappedY bool
}

type candidate struct {
	id string
	b  geometry.Bounds
}

// FindGuides computes snap deltas and guides for the dragged bounds against
// the candidate elements. Excluded ids (the dragged elements themselves),
// locked and hidden elements, pen strokes and ephemeral laser trails are
// never candidates. threshold is the maximum snap distance in world units.
func FindGuides(dragging geometry.Bounds, elements board.Elements, exclude map[string]bool, threshold float64) Result {
	cands := collectCandidates(elements, exclude)
	if len(cands) == 0 {
		return Result{}
	}

	var res Result

	if delta, ok := bestEdgeDelta(dragging, cands, AxisX, threshold); ok {
		res.DeltaX, res.SnappedX = delta, true
	}
	if delta, ok := bestEdgeDelta(dragging, cands, AxisY, threshold); ok {
		res.DeltaY, res.SnappedY = delta, true
	}

	// Gap matching only on axes without an edge alignment.
	if !res.SnappedX {
		if delta, gg, ok := gapSnap(dragging, cands, AxisX, threshold); ok {
			res.DeltaX, res.SnappedX = delta, true
			res.GapGuides = append(res.GapGuides, gg)
		}
	}
	if !res.SnappedY {
		if delta, gg, ok := gapSnap(dragging, cands, AxisY, threshold); ok {
			res.DeltaY, res.SnappedY = delta, true
			res.GapGuides = append(res.GapGuides, gg)
		}
	}

	snapped := dragging.Translate(res.DeltaX, res.DeltaY)
	if res.SnappedX {
		res.Guides = append(res.Guides, alignedGuides(snapped, cands, AxisX)...)
	}
	if res.SnappedY {
		res.Guides = append(res.Guides, alignedGuides(snapped, cands, AxisY)...)
	}
	return res
}

func collectCandidates(elements board.Elements, exclude map[string]bool) []candidate {
	out := make([]candidate, 0, len(elements))
	for _, e := range elements {
		c := e.Base()
		if exclude[c.ID] || c.Locked || c.Hidden {
			continue
		}
		// Freehand strokes and laser trails have noisy bounds nobody wants
		// to align with.
		if c.Type == board.KindPen || c.Type == board.KindLaser {
			continue
		}
		b, ok := geometry.BoundsOf(e)
		if !ok {
			continue
		}
		out = append(out, candidate{id: c.ID, b: b})
	}
	return out
}

// edges returns the three reference positions of b on the axis.
func edges(b geometry.Bounds, axis Axis) [3]float64 {
	if axis == AxisX {
		return [3]float64{b.Left(), b.CenterX(), b.Right()}
	}
	return [3]float64{b.Top(), b.CenterY(), b.Bottom()}
}

// bestEdgeDelta finds the minimum-distance edge alignment on the axis.
// Strictly-smaller comparison keeps the first-found candidate on ties.
func bestEdgeDelta(dragging geometry.Bounds, cands []candidate, axis Axis, threshold float64) (float64, bool) {
	dragEdges := edges(dragging, axis)
	best := math.Inf(1)
	var bestDelta float64
	for _, c := range cands {
		for _, ce := range edges(c.b, axis) {
			for _, de := range dragEdges {
				delta := ce - de
				if d := math.Abs(delta); d <= threshold && d < best {
					best = d
					bestDelta = delta
				}
			}
		}
	}
	return bestDelta, !math.IsInf(best, 1)
}

const alignEps = 1e-6

// alignedGuides groups candidate edges that coincide with an edge of the
// snapped dragging bounds, one guide per distinct position spanning the
// combined extent of everything aligned there plus the overhang.
func alignedGuides(snapped geometry.Bounds, cands []candidate, axis Axis) []Guide {
	type span struct{ lo, hi float64 }
	groups := make(map[float64]*span)
	var order []float64

	dragLo, dragHi := crossExtent(snapped, axis)
	for _, pos := range edges(snapped, axis) {
		for _, c := range cands {
			if !alignsAt(c.b, axis, pos) {
				continue
			}
			lo, hi := crossExtent(c.b, axis)
			g, ok := groups[pos]
			if !ok {
				groups[pos] = &span{lo: math.Min(lo, dragLo), hi: math.Max(hi, dragHi)}
				order = append(order, pos)
				continue
			}
			g.lo = math.Min(g.lo, lo)
			g.hi = math.Max(g.hi, hi)
		}
	}

	guides := make([]Guide, 0, len(order))
	for _, pos := range order {
		g := groups[pos]
		guides = append(guides, Guide{
			Axis:  axis,
			Pos:   pos,
			Start: g.lo - GuideOverhang,
			End:   g.hi + GuideOverhang,
		})
	}
	return guides
}

func alignsAt(b geometry.Bounds, axis Axis, pos float64) bool {
	for _, e := range edges(b, axis) {
		if math.Abs(e-pos) < alignEps {
			return true
		}
	}
	return false
}

// crossExtent returns the extent of b on the axis perpendicular to axis.
func crossExtent(b geometry.Bounds, axis Axis) (lo, hi float64) {
	if axis == AxisX {
		return b.Top(), b.Bottom()
	}
	return b.Left(), b.Right()
}

// axisExtent returns the extent of b along the axis itself.
func axisExtent(b geometry.Bounds, axis Axis) (lo, hi float64) {
	if axis == AxisX {
		return b.Left(), b.Right()
	}
	return b.Top(), b.Bottom()
}

func crossOverlaps(a, b geometry.Bounds, axis Axis) bool {
	alo, ahi := crossExtent(a, axis)
	blo, bhi := crossExtent(b, axis)
	return alo < bhi && blo < ahi
}
