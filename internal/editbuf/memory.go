package editbuf

import "strings"

// MemorySurface is an in-process Surface: a rune buffer with a selection, a
// focus flag and a row viewport. Hosts without a rendering layer (the CLI,
// tests) drive the synchronizer through it.
type MemorySurface struct {
	text    []rune
	sel     Range
	focused bool

	top    int // first visible row
	height int // visible rows; 0 disables scrolling

	setTextCalls int
}

// NewMemorySurface returns an empty surface showing height rows.
func NewMemorySurface(height int) *MemorySurface {
	return &MemorySurface{height: height}
}

func (m *MemorySurface) Text() string { return string(m.text) }

func (m *MemorySurface) SetText(text string) {
	m.text = []rune(text)
	m.sel = m.sel.normalize(len(m.text))
	m.setTextCalls++
}

func (m *MemorySurface) Selection() Range { return m.sel }

func (m *MemorySurface) SetCaret(a Anchor) {
	off := a.Resolve(len(m.text))
	m.sel = Range{Start: off, End: off}
}

func (m *MemorySurface) Focus() { m.focused = true }

// Blur drops input focus.
func (m *MemorySurface) Blur() { m.focused = false }

func (m *MemorySurface) Focused() bool { return m.focused }

func (m *MemorySurface) RevealCaret() {
	if m.height <= 0 {
		return
	}
	row := m.CaretRow()
	switch {
	case row < m.top:
		m.top = row
	case row >= m.top+m.height:
		m.top = row - m.height + 1
	}
}

// Caret returns the rune offset of the selection end.
func (m *MemorySurface) Caret() int { return m.sel.End }

// CaretRow returns the zero-based line the caret sits on.
func (m *MemorySurface) CaretRow() int {
	return strings.Count(string(m.text[:clamp(m.sel.End, 0, len(m.text))]), "\n")
}

// ScrollTop returns the first visible row.
func (m *MemorySurface) ScrollTop() int { return m.top }

// ScrollTo sets the first visible row.
func (m *MemorySurface) ScrollTo(row int) {
	if row < 0 {
		row = 0
	}
	m.top = row
}

// Select sets a selection without collapsing it.
func (m *MemorySurface) Select(start, end int) {
	m.sel = Range{Start: start, End: end}.normalize(len(m.text))
}

// Type splices s over the selection and leaves the caret after it, the way a
// keystroke lands before the surface reports the mutation.
func (m *MemorySurface) Type(s string) {
	sel := m.sel.normalize(len(m.text))
	ins := []rune(s)
	next := make([]rune, 0, len(m.text)-(sel.End-sel.Start)+len(ins))
	next = append(next, m.text[:sel.Start]...)
	next = append(next, ins...)
	next = append(next, m.text[sel.End:]...)
	m.text = next
	off := sel.Start + len(ins)
	m.sel = Range{Start: off, End: off}
}

// Backspace deletes the selection, or the rune before the caret.
func (m *MemorySurface) Backspace() {
	sel := m.sel.normalize(len(m.text))
	if sel.Start == sel.End {
		if sel.Start == 0 {
			return
		}
		sel.Start--
	}
	m.text = append(m.text[:sel.Start:sel.Start], m.text[sel.End:]...)
	m.sel = Range{Start: sel.Start, End: sel.Start}
}

// SetTextCalls counts SetText calls, i.e. remounts of the rendered text.
func (m *MemorySurface) SetTextCalls() int { return m.setTextCalls }

var _ Surface = (*MemorySurface)(nil)
