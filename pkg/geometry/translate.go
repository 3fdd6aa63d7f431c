package geometry

import "github.com/boardkit/boardkit/pkg/board"

// Translate returns a moved deep copy of the element. Linear kinds keep their
// points relative to the element origin, so only (X, Y) changes for every
// kind. The original is never mutated.
func Translate(e board.Element, dx, dy float64) board.Element {
	moved := e.Clone()
	c := moved.Base()
	c.X += dx
	c.Y += dy
	return moved
}

// TranslateAll translates every element in the list, returning copies.
func TranslateAll(els board.Elements, dx, dy float64) board.Elements {
	out := make(board.Elements, len(els))
	for i, e := range els {
		out[i] = Translate(e, dx, dy)
	}
	return out
}
