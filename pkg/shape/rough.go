// Package shape generates and caches the hand-drawn vector geometry used to
// render board elements.
//
// Generation is deterministic: the wobble of every stroke derives from a PCG
// generator seeded by the element id, its stored seed and the visual style
// parameters. Two clients rendering the same element therefore produce
// byte-identical paths, which keeps remote participants' shapes pixel-stable
// frame to frame.
//
// Paths use SVG path syntax (M/L/Q/C/Z) so any vector backend can consume
// them directly.
package shape

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/boardkit/boardkit/pkg/board"
)

// Path is one generated stroke or fill outline.
type Path struct {
	// D is the SVG path data.
	D string
	// Fill marks hachure/solid fill geometry as opposed to the outline.
	Fill bool
}

// Style carries the visual parameters that shape generation depends on.
// Every field participates in the cache key.
type Style struct {
	Roughness   float64
	Bowing      float64
	FillStyle   string
	StrokeWidth float64
}

// StyleOf extracts the generation-relevant style from an element.
func StyleOf(e board.Element) Style {
	c := e.Base()
	return Style{
		Roughness:   c.Roughness,
		Bowing:      c.Bowing,
		FillStyle:   c.FillStyle,
		StrokeWidth: c.StrokeWidth,
	}
}

// Generate produces the paths for an element. It returns nil for kinds with
// no sketchy geometry (text, tiles, embeds render through other channels)
// and for degenerate linear elements. Callers normally go through
// [Cache.ShapeFor], which adds memoization and panic containment.
func Generate(e board.Element, style Style) []Path {
	rng := newRNG(e.Base().ID, e.Base().Seed, style)
	c := e.Base()

	switch el := e.(type) {
	case *board.Rectangle:
		return withFill(wobbledRect(c.X, c.Y, c.Width, c.Height, style, rng), c, style, rng)
	case *board.Frame:
		// Frames draw a plain border; no wobble, no fill.
		return []Path{{D: rectPath(c.X, c.Y, c.Width, c.Height)}}
	case *board.Diamond:
		return withFill(wobbledDiamond(c.X, c.Y, c.Width, c.Height, style, rng), c, style, rng)
	case *board.Ellipse:
		return withFill(wobbledEllipse(c.X, c.Y, c.Width, c.Height, style, rng), c, style, rng)
	case *board.Line:
		return polyline(c, el.Points, style, rng)
	case *board.Arrow:
		paths := polyline(c, el.Points, style, rng)
		if head := arrowhead(c, el.Points); head != "" {
			paths = append(paths, Path{D: head})
		}
		return paths
	case *board.Pen:
		return smoothStroke(c, el.Points)
	case *board.Laser:
		return smoothStroke(c, el.Points)
	default:
		return nil
	}
}

// newRNG builds the deterministic generator for an element+style pair.
func newRNG(id string, seed uint64, style Style) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(id))
	fmt.Fprintf(h, "|%g|%g|%s", style.Roughness, style.Bowing, style.FillStyle)
	s := h.Sum64() ^ seed
	return rand.New(rand.NewPCG(s, s^0xdeadbeef))
}

// jitter returns a displacement scaled by roughness and the shape extent.
func jitter(rng *rand.Rand, style Style, extent float64) float64 {
	amp := style.Roughness * math.Min(4, math.Max(1, extent/50))
	return (rng.Float64()*2 - 1) * amp
}

func wobbledRect(x, y, w, h float64, style Style, rng *rand.Rand) Path {
	corners := [][2]float64{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}
	var b strings.Builder
	fmt.Fprintf(&b, "M%s %s", coord(corners[0][0]), coord(corners[0][1]))
	for i := range corners {
		from := corners[i]
		to := corners[(i+1)%4]
		writeWobbledSegment(&b, from, to, style, rng)
	}
	b.WriteString("Z")
	return Path{D: b.String()}
}

func wobbledDiamond(x, y, w, h float64, style Style, rng *rand.Rand) Path {
	pts := [][2]float64{
		{x + w/2, y}, {x + w, y + h/2}, {x + w/2, y + h}, {x, y + h/2},
	}
	var b strings.Builder
	fmt.Fprintf(&b, "M%s %s", coord(pts[0][0]), coord(pts[0][1]))
	for i := range pts {
		writeWobbledSegment(&b, pts[i], pts[(i+1)%4], style, rng)
	}
	b.WriteString("Z")
	return Path{D: b.String()}
}

// wobbledEllipse approximates the ellipse with jittered cubic arcs, one per
// quadrant. kappa is the standard circle-to-bezier constant.
func wobbledEllipse(x, y, w, h float64, style Style, rng *rand.Rand) Path {
	const kappa = 0.5522847498
	cx, cy := x+w/2, y+h/2
	rx, ry := w/2, h/2
	j := func(extent float64) float64 { return jitter(rng, style, extent) }

	var b strings.Builder
	fmt.Fprintf(&b, "M%s %s", coord(cx+rx), coord(cy))
	arc := func(x1, y1, x2, y2, x3, y3 float64) {
		fmt.Fprintf(&b, "C%s %s %s %s %s %s",
			coord(x1+j(rx)), coord(y1+j(ry)),
			coord(x2+j(rx)), coord(y2+j(ry)),
			coord(x3), coord(y3))
	}
	arc(cx+rx, cy+ry*kappa, cx+rx*kappa, cy+ry, cx, cy+ry)
	arc(cx-rx*kappa, cy+ry, cx-rx, cy+ry*kappa, cx-rx, cy)
	arc(cx-rx, cy-ry*kappa, cx-rx*kappa, cy-ry, cx, cy-ry)
	arc(cx+rx*kappa, cy-ry, cx+rx, cy-ry*kappa, cx+rx, cy)
	b.WriteString("Z")
	return Path{D: b.String()}
}

// writeWobbledSegment draws from -> to as a quadratic curve whose control
// point is displaced from the midpoint, giving the hand-drawn bow.
func writeWobbledSegment(b *strings.Builder, from, to [2]float64, style Style, rng *rand.Rand) {
	extent := math.Hypot(to[0]-from[0], to[1]-from[1])
	mx := (from[0]+to[0])/2 + jitter(rng, style, extent) + style.Bowing
	my := (from[1]+to[1])/2 + jitter(rng, style, extent) + style.Bowing
	fmt.Fprintf(b, "Q%s %s %s %s",
		coord(mx), coord(my),
		coord(to[0]+jitter(rng, style, 10)), coord(to[1]+jitter(rng, style, 10)))
}

func rectPath(x, y, w, h float64) string {
	return fmt.Sprintf("M%s %sL%s %sL%s %sL%s %sZ",
		coord(x), coord(y), coord(x+w), coord(y),
		coord(x+w), coord(y+h), coord(x), coord(y+h))
}

func polyline(c *board.Core, points []board.Point, style Style, rng *rand.Rand) []Path {
	if len(points) < 2 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "M%s %s", coord(c.X+points[0].X), coord(c.Y+points[0].Y))
	for i := 1; i < len(points); i++ {
		from := [2]float64{c.X + points[i-1].X, c.Y + points[i-1].Y}
		to := [2]float64{c.X + points[i].X, c.Y + points[i].Y}
		writeWobbledSegment(&b, from, to, style, rng)
	}
	return []Path{{D: b.String()}}
}

// smoothStroke renders freehand points as Catmull-Rom-ish quadratics through
// successive midpoints. No jitter: the hand already supplied it.
func smoothStroke(c *board.Core, points []board.Point) []Path {
	if len(points) < 2 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "M%s %s", coord(c.X+points[0].X), coord(c.Y+points[0].Y))
	for i := 1; i < len(points)-1; i++ {
		midX := c.X + (points[i].X+points[i+1].X)/2
		midY := c.Y + (points[i].Y+points[i+1].Y)/2
		fmt.Fprintf(&b, "Q%s %s %s %s",
			coord(c.X+points[i].X), coord(c.Y+points[i].Y),
			coord(midX), coord(midY))
	}
	last := points[len(points)-1]
	fmt.Fprintf(&b, "L%s %s", coord(c.X+last.X), coord(c.Y+last.Y))
	return []Path{{D: b.String()}}
}

// arrowhead returns the two short barb lines at the end of an arrow.
func arrowhead(c *board.Core, points []board.Point) string {
	if len(points) < 2 {
		return ""
	}
	tip := points[len(points)-1]
	prev := points[len(points)-2]
	angle := math.Atan2(tip.Y-prev.Y, tip.X-prev.X)
	size := math.Max(8, c.StrokeWidth*3)
	tx, ty := c.X+tip.X, c.Y+tip.Y

	var b strings.Builder
	for _, spread := range []float64{math.Pi - 0.4, math.Pi + 0.4} {
		fmt.Fprintf(&b, "M%s %sL%s %s",
			coord(tx), coord(ty),
			coord(tx+size*math.Cos(angle+spread)),
			coord(ty+size*math.Sin(angle+spread)))
	}
	return b.String()
}

// withFill appends hachure fill lines when the element asks for them.
func withFill(outline Path, c *board.Core, style Style, rng *rand.Rand) []Path {
	paths := []Path{outline}
	if style.FillStyle != board.FillHachure && style.FillStyle != board.FillCrosshach {
		return paths
	}
	paths = append(paths, hachure(c.X, c.Y, c.Width, c.Height, math.Pi/4, style, rng))
	if style.FillStyle == board.FillCrosshach {
		paths = append(paths, hachure(c.X, c.Y, c.Width, c.Height, -math.Pi/4, style, rng))
	}
	return paths
}

// hachure draws parallel fill lines across the bounding box at the given
// angle. Lines are clipped to the box by walking its diagonal extent.
func hachure(x, y, w, h, angle float64, style Style, rng *rand.Rand) Path {
	gap := math.Max(4, style.StrokeWidth*2)
	diag := math.Hypot(w, h)
	sin, cos := math.Sincos(angle)
	cx, cy := x+w/2, y+h/2

	var b strings.Builder
	for d := -diag / 2; d <= diag/2; d += gap {
		// Perpendicular offset from center, line along (cos, sin).
		ox, oy := cx-d*sin, cy+d*cos
		half := diag / 2
		x1, y1 := ox-half*cos, oy-half*sin
		x2, y2 := ox+half*cos, oy+half*sin
		j := jitter(rng, style, gap)
		fmt.Fprintf(&b, "M%s %sL%s %s", coord(x1+j), coord(y1+j), coord(x2-j), coord(y2-j))
	}
	return Path{D: b.String(), Fill: true}
}

// coord formats a coordinate with enough precision to be stable and short.
func coord(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
