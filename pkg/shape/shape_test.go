package shape

import (
	"strings"
	"testing"

	"github.com/boardkit/boardkit/pkg/board"
)

func sketchRect(id string, seed uint64) *board.Rectangle {
	return &board.Rectangle{Core: board.Core{
		ID: id, Type: board.KindRectangle, Seed: seed,
		X: 10, Y: 20, Width: 100, Height: 50,
		Roughness: 1, StrokeWidth: 2,
	}}
}

func TestGenerate_Deterministic(t *testing.T) {
	e := sketchRect("r1", 42)
	style := StyleOf(e)

	a := Generate(e, style)
	b := Generate(e, style)
	if len(a) == 0 {
		t.Fatal("no paths generated")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("generation is not deterministic:\n%s\n%s", a[i].D, b[i].D)
		}
	}
}

func TestGenerate_DifferentIDsDiffer(t *testing.T) {
	a := Generate(sketchRect("r1", 42), Style{Roughness: 1})
	b := Generate(sketchRect("r2", 42), Style{Roughness: 1})
	if a[0].D == b[0].D {
		t.Error("different element ids produced identical wobble")
	}
}

func TestGenerate_PathShape(t *testing.T) {
	paths := Generate(sketchRect("r", 7), Style{Roughness: 1})
	d := paths[0].D
	if !strings.HasPrefix(d, "M") {
		t.Errorf("path should start with M: %s", d)
	}
	if !strings.HasSuffix(d, "Z") {
		t.Errorf("closed shape should end with Z: %s", d)
	}
	if !strings.Contains(d, "Q") {
		t.Errorf("wobbled rect should use quadratic segments: %s", d)
	}
}

func TestGenerate_HachureFill(t *testing.T) {
	e := sketchRect("r", 7)
	e.FillStyle = board.FillHachure
	paths := Generate(e, StyleOf(e))
	if len(paths) != 2 {
		t.Fatalf("len(paths) = %d, want outline + fill", len(paths))
	}
	if paths[0].Fill || !paths[1].Fill {
		t.Error("fill flag misplaced")
	}
}

func TestGenerate_DegenerateLinear(t *testing.T) {
	pen := &board.Pen{Core: board.Core{ID: "p", Type: board.KindPen}}
	if got := Generate(pen, Style{}); got != nil {
		t.Errorf("degenerate pen produced %v, want nil", got)
	}
	one := &board.Line{Core: board.Core{ID: "l", Type: board.KindLine}, Points: []board.Point{{X: 0, Y: 0}}}
	if got := Generate(one, Style{}); got != nil {
		t.Errorf("single-point line produced %v, want nil", got)
	}
}

func TestGenerate_TextHasNoSketchGeometry(t *testing.T) {
	txt := &board.Text{Core: board.Core{ID: "t", Type: board.KindText}, Text: "hi"}
	if got := Generate(txt, Style{}); got != nil {
		t.Errorf("text produced %v, want nil", got)
	}
}

func TestCache_HitAndInvalidate(t *testing.T) {
	c := NewCache(nil)
	e := sketchRect("r1", 42)
	style := StyleOf(e)

	first := c.ShapeFor(e, style)
	second := c.ShapeFor(e, style)
	if &first[0] != &second[0] {
		t.Error("second read should return the cached slice")
	}

	c.Invalidate("r1")
	third := c.ShapeFor(e, style)
	if len(third) != len(first) || third[0] != first[0] {
		t.Error("regenerated geometry should be identical (deterministic)")
	}
}

func TestCache_StyleChangeMisses(t *testing.T) {
	c := NewCache(nil)
	e := sketchRect("r1", 42)

	plain := c.ShapeFor(e, StyleOf(e))

	e.FillStyle = board.FillHachure
	filled := c.ShapeFor(e, StyleOf(e))
	if len(filled) == len(plain) {
		t.Error("style change should regenerate, not serve the stale entry")
	}
}

func TestCache_ArrowAndStroke(t *testing.T) {
	c := NewCache(nil)
	arrow := &board.Arrow{
		Core:   board.Core{ID: "a", Type: board.KindArrow, StrokeWidth: 2},
		Points: []board.Point{{X: 0, Y: 0}, {X: 100, Y: 0}},
	}
	paths := c.ShapeFor(arrow, StyleOf(arrow))
	if len(paths) != 2 {
		t.Fatalf("arrow paths = %d, want shaft + head", len(paths))
	}

	pen := &board.Pen{
		Core:   board.Core{ID: "p", Type: board.KindPen},
		Points: []board.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 10, Y: 0}},
	}
	if got := c.ShapeFor(pen, StyleOf(pen)); len(got) != 1 {
		t.Fatalf("pen paths = %d, want 1", len(got))
	}
}
