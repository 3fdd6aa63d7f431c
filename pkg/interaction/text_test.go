package interaction

import (
	"testing"

	"github.com/boardkit/boardkit/pkg/board"
)

func textAt(id, content string, x, y float64) *board.Text {
	t := board.New(board.KindText, "me").(*board.Text)
	t.ID = id
	t.Text = content
	t.X, t.Y = x, y
	t.FontSize = 20
	sizeText(t)
	return t
}

func TestBeginTextEditClaimsElement(t *testing.T) {
	f := newFakeSyncer(textAt("t1", "hello", 0, 0))
	m := newMachine(f)

	if !m.BeginTextEdit("t1") {
		t.Fatal("edit of a free text element should succeed")
	}
	claimed := f.els["t1"].(*board.Text)
	if claimed.EditedBy != "me" {
		t.Errorf("EditedBy = %q after claim, want me", claimed.EditedBy)
	}

	m.InputText("hello world")
	m.EndTextEdit()

	got := f.els["t1"].(*board.Text)
	if got.Text != "hello world" {
		t.Errorf("text = %q, want hello world", got.Text)
	}
	if got.EditedBy != "" {
		t.Errorf("EditedBy = %q after commit, want released", got.EditedBy)
	}
	if got.Width <= 0 || got.Height <= 0 {
		t.Errorf("size = %vx%v, want measured from content", got.Width, got.Height)
	}
}

func TestLockedTextEditRejected(t *testing.T) {
	locked := textAt("t1", "hello", 0, 0)
	locked.Locked = true
	f := newFakeSyncer(locked)
	m := newMachine(f)

	if m.BeginTextEdit("t1") {
		t.Fatal("editing a locked element must be a no-op")
	}
	if len(f.upserts) != 0 {
		t.Errorf("upserts = %d, want 0", len(f.upserts))
	}
}

func TestRemotelyEditedTextRejected(t *testing.T) {
	busy := textAt("t1", "hello", 0, 0)
	busy.EditedBy = "someone-else"
	f := newFakeSyncer(busy)
	m := newMachine(f)

	if m.BeginTextEdit("t1") {
		t.Fatal("editing a remotely claimed element must be a no-op")
	}
	if len(f.upserts) != 0 {
		t.Errorf("upserts = %d, want 0", len(f.upserts))
	}
	if id, _ := m.EditingText(); id != "" {
		t.Errorf("editing id = %q, want none", id)
	}
}

func TestEscapeCancelsEditKeepingContent(t *testing.T) {
	f := newFakeSyncer(textAt("t1", "hello", 0, 0))
	m := newMachine(f)

	m.BeginTextEdit("t1")
	m.InputText("scrapped draft")
	m.KeyDown(KeyEscape, Modifiers{})

	got := f.els["t1"].(*board.Text)
	if got.Text != "hello" {
		t.Errorf("text = %q after cancel, want hello", got.Text)
	}
	if got.EditedBy != "" {
		t.Errorf("EditedBy = %q after cancel, want released", got.EditedBy)
	}
}

func TestTextToolCreatesOnCommitOnly(t *testing.T) {
	f := newFakeSyncer()
	m := newMachine(f)
	m.SetTool(ToolText)

	m.PointerDown(board.Point{X: 30, Y: 40}, Modifiers{})
	m.PointerUp(board.Point{X: 30, Y: 40}, Modifiers{})
	if len(f.upserts) != 0 {
		t.Fatal("text draft committed before input ended")
	}

	m.InputText("note")
	m.EndTextEdit()

	if len(f.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(f.upserts))
	}
	got := f.upserts[0][0].(*board.Text)
	if got.Text != "note" || got.X != 30 || got.Y != 40 {
		t.Errorf("committed = %+v, want note at (30,40)", got)
	}
}

func TestEmptyTextDraftDiscarded(t *testing.T) {
	f := newFakeSyncer()
	m := newMachine(f)
	m.SetTool(ToolText)

	m.PointerDown(board.Point{X: 0, Y: 0}, Modifiers{})
	m.PointerUp(board.Point{X: 0, Y: 0}, Modifiers{})
	m.InputText("   ")
	m.EndTextEdit()

	if len(f.upserts) != 0 {
		t.Errorf("upserts = %d, want 0 for whitespace-only text", len(f.upserts))
	}
}

func TestDeleteKeyIgnoredWhileTyping(t *testing.T) {
	f := newFakeSyncer(textAt("t1", "hello", 0, 0))
	m := newMachine(f)

	m.PointerDown(board.Point{X: 5, Y: 5}, Modifiers{})
	m.PointerUp(board.Point{X: 5, Y: 5}, Modifiers{})
	m.BeginTextEdit("t1")

	m.KeyDown(KeyBackspace, Modifiers{})
	if len(f.deletes) != 0 {
		t.Error("backspace during text edit deleted elements")
	}
}
