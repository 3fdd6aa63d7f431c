package interaction

import (
	"runtime"

	"github.com/boardkit/boardkit/pkg/board"
)

// Tool selects what pointer input does.
type Tool string

const (
	ToolSelect    Tool = "select"
	ToolRectangle Tool = "rectangle"
	ToolDiamond   Tool = "diamond"
	ToolEllipse   Tool = "ellipse"
	ToolLine      Tool = "line"
	ToolArrow     Tool = "arrow"
	ToolPen       Tool = "pen"
	ToolText      Tool = "text"
	ToolFrame     Tool = "frame"
	ToolEraser    Tool = "eraser"
	ToolLaser     Tool = "laser"
	ToolHand      Tool = "hand"
)

// kind maps a creation tool to the element kind it drafts. Zero for tools
// that do not create elements.
func (t Tool) kind() board.Kind {
	switch t {
	case ToolRectangle:
		return board.KindRectangle
	case ToolDiamond:
		return board.KindDiamond
	case ToolEllipse:
		return board.KindEllipse
	case ToolLine:
		return board.KindLine
	case ToolArrow:
		return board.KindArrow
	case ToolPen:
		return board.KindPen
	case ToolLaser:
		return board.KindLaser
	case ToolText:
		return board.KindText
	case ToolFrame:
		return board.KindFrame
	}
	return ""
}

// State is the machine's primary activity.
type State string

const (
	StateIdle     State = "idle"
	StateDrawing  State = "drawing"
	StateDragging State = "dragging"
	StateResizing State = "resizing"
	StateRotating State = "rotating"
	StateErasing  State = "erasing"
	StatePanning  State = "panning"
)

// Key identifies keyboard input the machine reacts to.
type Key string

const (
	KeyDelete    Key = "delete"
	KeyBackspace Key = "backspace"
	KeyEscape    Key = "escape"
)

// Modifiers carries the modifier keys held during an input event.
type Modifiers struct {
	// Shift constrains proportions while drawing or resizing and extends
	// the selection on pointer-down.
	Shift bool
	// Primary is the platform's main shortcut modifier, see PrimaryModifierName.
	Primary bool
}

// PrimaryModifierName names the platform's primary shortcut modifier:
// Cmd on darwin, Ctrl everywhere else.
func PrimaryModifierName() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}

// Handle identifies a resize handle on the selection bounds.
type Handle string

const (
	HandleNone        Handle = ""
	HandleTopLeft     Handle = "nw"
	HandleTop         Handle = "n"
	HandleTopRight    Handle = "ne"
	HandleRight       Handle = "e"
	HandleBottomRight Handle = "se"
	HandleBottom      Handle = "s"
	HandleBottomLeft  Handle = "sw"
	HandleLeft        Handle = "w"
	// HandleRotate is the rotation grip above the selection.
	HandleRotate Handle = "rotate"
)
