package snap

import (
	"math"
	"sort"

	"github.com/boardkit/boardkit/pkg/geometry"
)

// gapSnap implements the equal-spacing / gap-matching fallback on one axis.
//
// Neighbors are the nearest candidates flanking the dragged bounds with
// overlapping extent on the cross axis. With two neighbors the snap
// equalizes the two gaps; with a single neighbor it reproduces the nearest
// existing gap (by snap distance) found among the candidates themselves.
func gapSnap(dragging geometry.Bounds, cands []candidate, axis Axis, threshold float64) (float64, GapGuide, bool) {
	before, haveBefore := nearestBefore(dragging, cands, axis)
	after, haveAfter := nearestAfter(dragging, cands, axis)

	dragLo, dragHi := axisExtent(dragging, axis)
	size := dragHi - dragLo
	cross := crossMid(dragging, axis)

	switch {
	case haveBefore && haveAfter:
		// Equalize the two gaps: center the dragged bounds in the slot.
		_, bHi := axisExtent(before.b, axis)
		aLo, _ := axisExtent(after.b, axis)
		slot := aLo - bHi
		if slot <= size {
			return 0, GapGuide{}, false
		}
		gap := (slot - size) / 2
		target := bHi + gap
		delta := target - dragLo
		if math.Abs(delta) > threshold {
			return 0, GapGuide{}, false
		}
		gg := GapGuide{
			Axis: axis,
			Gap:  gap,
			Spans: []GapSpan{
				{From: bHi, To: target, Cross: cross},
				{From: target + size, To: aLo, Cross: cross},
			},
		}
		return delta, gg, true

	case haveBefore:
		gap, ok := nearestExistingGap(cands, axis, dragging, func(g float64) float64 {
			_, bHi := axisExtent(before.b, axis)
			return (bHi + g) - dragLo
		}, threshold)
		if !ok {
			return 0, GapGuide{}, false
		}
		_, bHi := axisExtent(before.b, axis)
		delta := (bHi + gap) - dragLo
		gg := GapGuide{
			Axis:  axis,
			Gap:   gap,
			Spans: []GapSpan{{From: bHi, To: bHi + gap, Cross: cross}},
		}
		return delta, gg, true

	case haveAfter:
		gap, ok := nearestExistingGap(cands, axis, dragging, func(g float64) float64 {
			aLo, _ := axisExtent(after.b, axis)
			return (aLo - g - size) - dragLo
		}, threshold)
		if !ok {
			return 0, GapGuide{}, false
		}
		aLo, _ := axisExtent(after.b, axis)
		delta := (aLo - gap - size) - dragLo
		gg := GapGuide{
			Axis:  axis,
			Gap:   gap,
			Spans: []GapSpan{{From: aLo - gap, To: aLo, Cross: cross}},
		}
		return delta, gg, true
	}
	return 0, GapGuide{}, false
}

// nearestBefore returns the candidate ending closest before the dragged
// bounds on the axis, restricted to cross-axis overlap.
func nearestBefore(dragging geometry.Bounds, cands []candidate, axis Axis) (candidate, bool) {
	dragLo, _ := axisExtent(dragging, axis)
	best := math.Inf(-1)
	var found candidate
	ok := false
	for _, c := range cands {
		if !crossOverlaps(dragging, c.b, axis) {
			continue
		}
		_, hi := axisExtent(c.b, axis)
		if hi <= dragLo && hi > best {
			best, found, ok = hi, c, true
		}
	}
	return found, ok
}

// nearestAfter mirrors nearestBefore on the other side.
func nearestAfter(dragging geometry.Bounds, cands []candidate, axis Axis) (candidate, bool) {
	_, dragHi := axisExtent(dragging, axis)
	best := math.Inf(1)
	var found candidate
	ok := false
	for _, c := range cands {
		if !crossOverlaps(dragging, c.b, axis) {
			continue
		}
		lo, _ := axisExtent(c.b, axis)
		if lo >= dragHi && lo < best {
			best, found, ok = lo, c, true
		}
	}
	return found, ok
}

// nearestExistingGap scans every gap between candidate pairs that overlap
// each other on the cross axis and returns the one whose reproduction moves
// the dragged bounds the least, within the threshold. deltaFor maps a gap
// value to the snap delta it would require.
func nearestExistingGap(cands []candidate, axis Axis, dragging geometry.Bounds, deltaFor func(gap float64) float64, threshold float64) (float64, bool) {
	gaps := existingGaps(cands, axis)
	bestDist := math.Inf(1)
	var bestGap float64
	for _, g := range gaps {
		if d := math.Abs(deltaFor(g)); d <= threshold && d < bestDist {
			bestDist, bestGap = d, g
		}
	}
	return bestGap, !math.IsInf(bestDist, 1)
}

// existingGaps collects the positive spacings between adjacent candidate
// pairs with cross-axis overlap, sorted ascending for determinism.
func existingGaps(cands []candidate, axis Axis) []float64 {
	var gaps []float64
	for i, a := range cands {
		for _, b := range cands[i+1:] {
			if !crossOverlaps(a.b, b.b, axis) {
				continue
			}
			aLo, aHi := axisExtent(a.b, axis)
			bLo, bHi := axisExtent(b.b, axis)
			switch {
			case aHi <= bLo:
				gaps = append(gaps, bLo-aHi)
			case bHi <= aLo:
				gaps = append(gaps, aLo-bHi)
			}
		}
	}
	sort.Float64s(gaps)
	return gaps
}

func crossMid(b geometry.Bounds, axis Axis) float64 {
	lo, hi := crossExtent(b, axis)
	return (lo + hi) / 2
}
