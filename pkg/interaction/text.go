package interaction

import (
	"strings"

	"github.com/boardkit/boardkit/pkg/board"
	"github.com/boardkit/boardkit/pkg/geometry"
)

const (
	defaultFontSize = 20.0
	// charWidthRatio approximates glyph width as a fraction of font size.
	charWidthRatio = 0.6
	lineHeight     = 1.25
)

// textDown handles a pointer-down with the text tool: clicking an existing
// text element edits it, clicking empty canvas starts a new one.
func (m *Machine) textDown(p board.Point) {
	if hit, ok := geometry.TopmostHit(m.syncer.Elements().Alive(), p); ok {
		if _, isText := hit.(*board.Text); isText {
			m.BeginTextEdit(hit.Base().ID)
			return
		}
	}
	draft := board.New(board.KindText, m.site).(*board.Text)
	draft.X = p.X
	draft.Y = p.Y
	draft.FontSize = defaultFontSize
	m.textDraft = draft
	m.editingID = draft.ID
	m.editText = ""
}

// BeginTextEdit claims an existing text element for editing. Locked elements
// and elements another participant is editing are silently rejected; the
// return value reports whether the claim succeeded.
func (m *Machine) BeginTextEdit(id string) bool {
	if m.editingID != "" {
		return m.editingID == id
	}
	var target *board.Text
	for _, e := range m.syncer.Elements() {
		if e.Base().ID != id {
			continue
		}
		t, ok := e.(*board.Text)
		if !ok {
			return false
		}
		target = t
		break
	}
	if target == nil || target.Locked {
		return false
	}
	if target.EditedBy != "" && target.EditedBy != m.site {
		return false
	}

	claim := target.Clone().(*board.Text)
	claim.EditedBy = m.site
	m.syncer.Upsert(claim)

	m.editingID = id
	m.editText = target.Text
	return true
}

// EditingText reports the element being edited and the uncommitted content.
func (m *Machine) EditingText() (id, text string) {
	return m.editingID, m.editText
}

// InputText replaces the uncommitted content of the active edit. The
// document is not touched until EndTextEdit.
func (m *Machine) InputText(text string) {
	if m.editingID == "" {
		return
	}
	m.editText = text
	if m.textDraft != nil {
		preview := m.textDraft.Clone().(*board.Text)
		preview.Text = text
		sizeText(preview)
		m.syncer.UpdateDrawingElement(preview)
	}
}

// EndTextEdit commits the edit: the element takes the new content and the
// edit claim is released. A brand-new text left empty is discarded instead
// of committed.
func (m *Machine) EndTextEdit() {
	if m.editingID == "" {
		return
	}
	defer m.clearTextEdit()

	if m.textDraft != nil {
		if strings.TrimSpace(m.editText) == "" {
			return
		}
		m.textDraft.Text = m.editText
		sizeText(m.textDraft)
		m.invalidate(m.textDraft.ID)
		m.syncer.Upsert(m.textDraft)
		m.selection = map[string]bool{m.textDraft.ID: true}
		m.tool = ToolSelect
		return
	}

	for _, e := range m.syncer.Elements() {
		if e.Base().ID != m.editingID {
			continue
		}
		t, ok := e.(*board.Text)
		if !ok {
			return
		}
		next := t.Clone().(*board.Text)
		next.Text = m.editText
		next.EditedBy = ""
		sizeText(next)
		m.invalidate(next.ID)
		m.syncer.Upsert(next)
		return
	}
}

// cancelTextEdit abandons the edit. A claimed existing element gets its
// claim released with the content untouched; an uncommitted draft just
// disappears.
func (m *Machine) cancelTextEdit() {
	defer m.clearTextEdit()
	if m.textDraft != nil {
		return
	}
	for _, e := range m.syncer.Elements() {
		if e.Base().ID != m.editingID {
			continue
		}
		t, ok := e.(*board.Text)
		if !ok || t.EditedBy != m.site {
			return
		}
		release := t.Clone().(*board.Text)
		release.EditedBy = ""
		m.syncer.Upsert(release)
		return
	}
}

func (m *Machine) clearTextEdit() {
	m.editingID = ""
	m.editText = ""
	m.textDraft = nil
	m.syncer.UpdateDrawingElement(nil)
}

// sizeText measures the element from its content. Width and height are
// derived, not authored.
func sizeText(t *board.Text) {
	fs := t.FontSize
	if fs <= 0 {
		fs = defaultFontSize
		t.FontSize = fs
	}
	lines := strings.Split(t.Text, "\n")
	longest := 0
	for _, l := range lines {
		if n := len([]rune(l)); n > longest {
			longest = n
		}
	}
	t.Width = float64(longest) * fs * charWidthRatio
	t.Height = float64(len(lines)) * fs * lineHeight
}
