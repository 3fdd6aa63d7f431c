package geometry

import (
	"math"
	"testing"

	"github.com/boardkit/boardkit/pkg/board"
)

func rect(id string, x, y, w, h, stroke float64) *board.Rectangle {
	return &board.Rectangle{Core: board.Core{
		ID: id, Type: board.KindRectangle,
		X: x, Y: y, Width: w, Height: h, StrokeWidth: stroke,
	}}
}

func TestBoundsOf_RectangleStrokePadding(t *testing.T) {
	tests := []struct {
		name   string
		stroke float64
	}{
		{"no stroke", 0},
		{"thin", 1},
		{"thick", 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := BoundsOf(rect("r", 100, 200, 50, 30, tt.stroke))
			if !ok {
				t.Fatal("BoundsOf returned !ok for a rectangle")
			}
			want := Bounds{
				X:      100 - tt.stroke/2,
				Y:      200 - tt.stroke/2,
				Width:  50 + tt.stroke,
				Height: 30 + tt.stroke,
			}
			if b != want {
				t.Errorf("bounds = %+v, want %+v", b, want)
			}
		})
	}
}

func TestBoundsOf_LinearKinds(t *testing.T) {
	line := &board.Line{
		Core:   board.Core{ID: "l", Type: board.KindLine, X: 10, Y: 10, StrokeWidth: 2},
		Points: []board.Point{{X: 0, Y: 0}, {X: 40, Y: -20}, {X: 20, Y: 30}},
	}
	b, ok := BoundsOf(line)
	if !ok {
		t.Fatal("BoundsOf returned !ok for a line with points")
	}
	want := Bounds{X: 9, Y: -11, Width: 42, Height: 52}
	if b != want {
		t.Errorf("bounds = %+v, want %+v", b, want)
	}
}

func TestBoundsOf_DegenerateLinear(t *testing.T) {
	pen := &board.Pen{Core: board.Core{ID: "p", Type: board.KindPen}}
	if _, ok := BoundsOf(pen); ok {
		t.Error("BoundsOf should return !ok for a pen stroke with no points")
	}
}

func TestBoundsOf_TextIntrinsic(t *testing.T) {
	txt := &board.Text{
		Core: board.Core{ID: "t", Type: board.KindText, X: 5, Y: 6, Width: 80, Height: 24, StrokeWidth: 4},
		Text: "hi",
	}
	b, _ := BoundsOf(txt)
	want := Bounds{X: 5, Y: 6, Width: 80, Height: 24}
	if b != want {
		t.Errorf("text bounds = %+v, want intrinsic %+v (no stroke padding)", b, want)
	}
}

func TestBoundsOf_Rotated(t *testing.T) {
	// A 40x20 rect rotated 90 degrees occupies a 20x40 box about the same center.
	r := rect("r", 0, 0, 40, 20, 0)
	r.Angle = math.Pi / 2
	b, _ := BoundsOf(r)
	const eps = 1e-9
	if math.Abs(b.Width-20) > eps || math.Abs(b.Height-40) > eps {
		t.Errorf("rotated size = %gx%g, want 20x40", b.Width, b.Height)
	}
	if math.Abs(b.CenterX()-20) > eps || math.Abs(b.CenterY()-10) > eps {
		t.Errorf("rotated center = (%g,%g), want (20,10)", b.CenterX(), b.CenterY())
	}
}

func TestTranslate_PureAndUniform(t *testing.T) {
	line := &board.Line{
		Core:   board.Core{ID: "l", Type: board.KindLine, X: 10, Y: 10},
		Points: []board.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
	}
	moved := Translate(line, 7, -3)
	if line.X != 10 || line.Y != 10 {
		t.Error("Translate mutated the original")
	}
	mb := moved.Base()
	if mb.X != 17 || mb.Y != 7 {
		t.Errorf("moved origin = (%g,%g), want (17,7)", mb.X, mb.Y)
	}
	if pts := moved.(*board.Line).Points; pts[1] != (board.Point{X: 5, Y: 5}) {
		t.Errorf("points should stay origin-relative, got %+v", pts)
	}
}

func TestTopmostHit_ZOrderAndLocks(t *testing.T) {
	bottom := rect("bottom", 0, 0, 100, 100, 0)
	bottom.ZIndex = 1
	top := rect("top", 25, 25, 50, 50, 0)
	top.ZIndex = 2
	locked := rect("locked", 25, 25, 50, 50, 0)
	locked.ZIndex = 3
	locked.Locked = true
	hidden := rect("hidden", 25, 25, 50, 50, 0)
	hidden.ZIndex = 4
	hidden.Hidden = true

	els := board.Elements{bottom, top, locked, hidden}

	hit, ok := TopmostHit(els, board.Point{X: 50, Y: 50})
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Base().ID != "top" {
		t.Errorf("hit = %q, want top (locked and hidden skipped)", hit.Base().ID)
	}

	hit, ok = TopmostHit(els, board.Point{X: 5, Y: 5})
	if !ok || hit.Base().ID != "bottom" {
		t.Errorf("corner hit = %v, want bottom", hit)
	}

	if _, ok := TopmostHit(els, board.Point{X: 500, Y: 500}); ok {
		t.Error("hit outside all elements should miss")
	}
}

func TestHitTest_Rotated(t *testing.T) {
	r := rect("r", 0, 0, 100, 10, 0)
	r.Angle = math.Pi / 2 // now a tall thin box about center (50, 5)

	if !HitTest(r, board.Point{X: 50, Y: 45}) {
		t.Error("point inside rotated box should hit")
	}
	if HitTest(r, board.Point{X: 95, Y: 5}) {
		t.Error("point inside the unrotated box but outside the rotated one should miss")
	}
}

func TestBoundsOfAll(t *testing.T) {
	a := rect("a", 0, 0, 10, 10, 0)
	b := rect("b", 90, 90, 10, 10, 0)
	deg := &board.Pen{Core: board.Core{ID: "p", Type: board.KindPen}}

	got, ok := BoundsOfAll(board.Elements{a, deg, b})
	if !ok {
		t.Fatal("expected combined bounds")
	}
	want := Bounds{X: 0, Y: 0, Width: 100, Height: 100}
	if got != want {
		t.Errorf("combined = %+v, want %+v", got, want)
	}

	if _, ok := BoundsOfAll(board.Elements{deg}); ok {
		t.Error("all-degenerate list should return !ok")
	}
}
