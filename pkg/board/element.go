package board

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Element Kinds
// =============================================================================

// Kind identifies the concrete element variant.
type Kind string

// Element kinds.
const (
	KindRectangle Kind = "rectangle"
	KindDiamond   Kind = "diamond"
	KindEllipse   Kind = "ellipse"
	KindLine      Kind = "line"
	KindArrow     Kind = "arrow"
	KindPen       Kind = "pen"
	KindText      Kind = "text"
	KindTile      Kind = "tile"
	KindFrame     Kind = "frame"
	KindWebEmbed  Kind = "web-embed"
	KindLaser     Kind = "laser"
)

// IsLinear reports whether the kind stores its geometry as a point sequence.
func (k Kind) IsLinear() bool {
	switch k {
	case KindLine, KindArrow, KindPen, KindLaser:
		return true
	}
	return false
}

// IsEphemeral reports whether elements of this kind self-expire and are
// excluded from durable persistence concerns like snapping and export.
func (k Kind) IsEphemeral() bool { return k == KindLaser }

// Stroke and fill styles.
const (
	StrokeSolid  = "solid"
	StrokeDashed = "dashed"
	StrokeDotted = "dotted"

	FillNone      = "none"
	FillSolid     = "solid"
	FillHachure   = "hachure"
	FillCrosshach = "cross-hatch"
)

// =============================================================================
// Shared Core Record
// =============================================================================

// Point is a position in world coordinates.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Core holds the attributes every element kind shares. Kind structs embed it
// and Element.Base exposes it for uniform access.
type Core struct {
	ID     string  `json:"id" bson:"id"`
	Type   Kind    `json:"type" bson:"type"`
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
	Angle  float64 `json:"angle,omitempty" bson:"angle,omitempty"` // radians, about the box center

	// ZIndex is a fractional sort key: new elements go on top, reordering
	// picks a key between neighbors so concurrent inserts rarely collide.
	ZIndex float64 `json:"zIndex" bson:"zIndex"`

	StrokeColor string  `json:"strokeColor,omitempty" bson:"strokeColor,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty" bson:"strokeWidth,omitempty"`
	StrokeStyle string  `json:"strokeStyle,omitempty" bson:"strokeStyle,omitempty"`
	FillColor   string  `json:"fillColor,omitempty" bson:"fillColor,omitempty"`
	FillStyle   string  `json:"fillStyle,omitempty" bson:"fillStyle,omitempty"`
	Opacity     float64 `json:"opacity" bson:"opacity"`
	Roughness   float64 `json:"roughness,omitempty" bson:"roughness,omitempty"`
	Bowing      float64 `json:"bowing,omitempty" bson:"bowing,omitempty"`

	// Seed feeds the deterministic hand-drawn geometry generator so every
	// client renders the identical wobble for this element.
	Seed uint64 `json:"seed" bson:"seed"`

	Locked bool `json:"locked,omitempty" bson:"locked,omitempty"`
	Hidden bool `json:"hidden,omitempty" bson:"hidden,omitempty"`

	// Deleted marks a tombstone. Deletions replicate as tombstoned writes so
	// a delete can win a last-write-wins merge; readers filter them out.
	Deleted bool `json:"deleted,omitempty" bson:"deleted,omitempty"`

	// Version is a lamport stamp bumped on every mutation; Site breaks ties
	// between truly concurrent writes. Together they order last-write-wins
	// merges without trusting wall clocks.
	Version int64  `json:"version" bson:"version"`
	Site    string `json:"site,omitempty" bson:"site,omitempty"`

	CreatedAt time.Time `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
}

// Base returns the shared record. It makes *Core satisfy part of Element so
// kind structs inherit it by embedding.
func (c *Core) Base() *Core { return c }

// Kind returns the element kind tag.
func (c *Core) Kind() Kind { return c.Type }

// =============================================================================
// Element Interface
// =============================================================================

// Element is the closed set of board element variants. Concrete types are the
// kind structs in this package; code needing kind-specific payloads type
// switches on them.
type Element interface {
	Base() *Core
	Kind() Kind
	// Clone returns a deep copy; mutating the copy never aliases the original.
	Clone() Element
}

// Rectangle is an axis-aligned box shape.
type Rectangle struct {
	Core `bson:",inline"`
}

// Diamond is a rhombus inscribed in its bounding box.
type Diamond struct {
	Core `bson:",inline"`
}

// Ellipse is an ellipse inscribed in its bounding box.
type Ellipse struct {
	Core `bson:",inline"`
}

// Line is a polyline through Points, positioned relative to (X, Y).
type Line struct {
	Core   `bson:",inline"`
	Points []Point `json:"points" bson:"points"`
}

// Arrow is a line with arrowhead decorations.
type Arrow struct {
	Core           `bson:",inline"`
	Points         []Point `json:"points" bson:"points"`
	StartArrowhead string  `json:"startArrowhead,omitempty" bson:"startArrowhead,omitempty"`
	EndArrowhead   string  `json:"endArrowhead,omitempty" bson:"endArrowhead,omitempty"`
}

// Pen is a freehand stroke. Pressures, when present, parallels Points.
type Pen struct {
	Core      `bson:",inline"`
	Points    []Point   `json:"points" bson:"points"`
	Pressures []float64 `json:"pressures,omitempty" bson:"pressures,omitempty"`
}

// Laser is an ephemeral pointer trail. It never persists: the sync layer
// deletes it once ExpiresAt passes.
type Laser struct {
	Core      `bson:",inline"`
	Points    []Point   `json:"points" bson:"points"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}

// Text is a text block. Width and Height are measured, not authored.
type Text struct {
	Core       `bson:",inline"`
	Text       string  `json:"text" bson:"text"`
	FontSize   float64 `json:"fontSize,omitempty" bson:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty" bson:"fontFamily,omitempty"`
	// EditedBy names the participant currently editing, empty when free.
	// Another participant's edit attempt is rejected while set.
	EditedBy string `json:"editedBy,omitempty" bson:"editedBy,omitempty"`
}

// Tile is a rich-content card: sticky note, code block, diagram, image ref.
type Tile struct {
	Core     `bson:",inline"`
	TileType string `json:"tileType" bson:"tileType"`
	Content  string `json:"content,omitempty" bson:"content,omitempty"`
}

// Frame groups elements visually; membership is by containment, not by an
// explicit child list, so frames never dangle after deletes.
type Frame struct {
	Core `bson:",inline"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

// WebEmbed renders an external URL inside a box.
type WebEmbed struct {
	Core `bson:",inline"`
	URL  string `json:"url" bson:"url"`
}

// =============================================================================
// Clone implementations
// =============================================================================

func (e *Rectangle) Clone() Element { c := *e; return &c }
func (e *Diamond) Clone() Element   { c := *e; return &c }
func (e *Ellipse) Clone() Element   { c := *e; return &c }
func (e *Frame) Clone() Element     { c := *e; return &c }
func (e *WebEmbed) Clone() Element  { c := *e; return &c }
func (e *Tile) Clone() Element      { c := *e; return &c }
func (e *Text) Clone() Element      { c := *e; return &c }

func (e *Line) Clone() Element {
	c := *e
	c.Points = append([]Point(nil), e.Points...)
	return &c
}

func (e *Arrow) Clone() Element {
	c := *e
	c.Points = append([]Point(nil), e.Points...)
	return &c
}

func (e *Pen) Clone() Element {
	c := *e
	c.Points = append([]Point(nil), e.Points...)
	c.Pressures = append([]float64(nil), e.Pressures...)
	return &c
}

func (e *Laser) Clone() Element {
	c := *e
	c.Points = append([]Point(nil), e.Points...)
	return &c
}

// =============================================================================
// Construction
// =============================================================================

// NewID returns a fresh globally unique element id.
func NewID() string { return uuid.NewString() }

// New creates an empty element of the given kind with a fresh id and seed.
// The caller fills in geometry and style.
func New(kind Kind, site string) Element {
	core := Core{
		ID:        NewID(),
		Type:      kind,
		Opacity:   1,
		Seed:      uint64(uuid.New().ID())<<32 | uint64(uuid.New().ID()),
		Site:      site,
		Version:   1,
		CreatedAt: time.Now(),
	}
	return FromCore(core)
}

// FromCore wraps a core record in the concrete variant named by core.Type.
// Unknown kinds fall back to Rectangle so a newer peer's element still
// occupies space instead of vanishing.
func FromCore(core Core) Element {
	switch core.Type {
	case KindDiamond:
		return &Diamond{Core: core}
	case KindEllipse:
		return &Ellipse{Core: core}
	case KindLine:
		return &Line{Core: core}
	case KindArrow:
		return &Arrow{Core: core}
	case KindPen:
		return &Pen{Core: core}
	case KindLaser:
		return &Laser{Core: core}
	case KindText:
		return &Text{Core: core}
	case KindTile:
		return &Tile{Core: core}
	case KindFrame:
		return &Frame{Core: core}
	case KindWebEmbed:
		return &WebEmbed{Core: core}
	default:
		core.Type = KindRectangle
		return &Rectangle{Core: core}
	}
}

// Touch bumps the element's lamport version and records the mutating site.
// Every local mutation path must call it before handing the element to the
// sync layer, or the write loses merges it should win.
func Touch(e Element, site string, clock int64) {
	b := e.Base()
	if clock <= b.Version {
		clock = b.Version + 1
	}
	b.Version = clock
	b.Site = site
}
