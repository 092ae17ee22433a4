// Package editbuf keeps a live, user-editable text surface and the canonical
// document content in step.
//
// The surface is the source of truth while the user types. The canonical
// string is the source of truth everywhere else: on load, on remount and
// between keystrokes. A Synchronizer mediates between the two and is driven
// entirely by surface callbacks on a single goroutine.
package editbuf

// Range is a half-open selection [Start, End) in rune offsets of the surface
// text. Start == End is a collapsed caret.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) normalize(n int) Range {
	if r.Start > r.End {
		r.Start, r.End = r.End, r.Start
	}
	r.Start = clamp(r.Start, 0, n)
	r.End = clamp(r.End, 0, n)
	return r
}

// AnchorKind names where a caret is placed.
type AnchorKind uint8

const (
	AnchorStart AnchorKind = iota
	AnchorEnd
	AnchorOffset
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorStart:
		return "start"
	case AnchorEnd:
		return "end"
	case AnchorOffset:
		return "offset"
	}
	return "unknown"
}

// Anchor is a caret placement request.
type Anchor struct {
	Kind   AnchorKind
	Offset int // rune offset, only for AnchorOffset
}

// Start anchors the caret before the first rune.
func Start() Anchor { return Anchor{Kind: AnchorStart} }

// End anchors the caret after the last rune.
func End() Anchor { return Anchor{Kind: AnchorEnd} }

// At anchors the caret at a rune offset.
func At(offset int) Anchor { return Anchor{Kind: AnchorOffset, Offset: offset} }

// Resolve returns the rune offset a points at in a text of n runes.
func (a Anchor) Resolve(n int) int {
	switch a.Kind {
	case AnchorEnd:
		return n
	case AnchorOffset:
		return clamp(a.Offset, 0, n)
	}
	return 0
}

// Surface is the editable region rendered by the host.
type Surface interface {
	// Text returns the full rendered text, in the surface's own line-break form.
	Text() string
	// SetText replaces the rendered text.
	SetText(text string)
	// Selection returns the current selection or caret.
	Selection() Range
	// SetCaret collapses the selection at a.
	SetCaret(a Anchor)
	// Focus gives the surface input focus.
	Focus()
	// Focused reports whether the surface holds input focus.
	Focused() bool
	// RevealCaret scrolls by the minimal amount that brings the caret into view.
	RevealCaret()
}

// Key is a key name reported by the surface.
type Key string

const (
	KeyTab   Key = "Tab"
	KeyEnter Key = "Enter"
)

// SignalKind enumerates what a surface can report.
type SignalKind uint8

const (
	SignalInput SignalKind = iota
	SignalCompositionStart
	SignalCompositionEnd
	SignalKey
	SignalPointer
)

var signalNames = map[SignalKind]string{
	SignalInput:            "input",
	SignalCompositionStart: "compositionstart",
	SignalCompositionEnd:   "compositionend",
	SignalKey:              "key",
	SignalPointer:          "pointer",
}

func (k SignalKind) String() string {
	if s, ok := signalNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseSignalKind maps a wire name back to a SignalKind.
func ParseSignalKind(name string) (SignalKind, bool) {
	for k, s := range signalNames {
		if s == name {
			return k, true
		}
	}
	return 0, false
}

// Signal is one surface event. Key is only set for SignalKey.
type Signal struct {
	Kind SignalKind
	Key  Key
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
