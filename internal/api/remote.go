package api

import (
	"errors"
	"sync"

	"github.com/starford/vertext/internal/editbuf"
	"github.com/starford/vertext/internal/sse"
)

// Surface command operations sent to the client.
const (
	OpSetText     = "set_text"
	OpSetCaret    = "set_caret"
	OpFocus       = "focus"
	OpRevealCaret = "reveal_caret"
)

// ErrStaleSurface rejects a client snapshot taken before the latest set_text.
var ErrStaleSurface = errors.New("surface snapshot is stale")

// Command is one instruction for the client-side surface. Rev is the surface
// revision once the command is applied.
type Command struct {
	Op     string `json:"op"`
	Text   string `json:"text,omitempty"`
	Offset int    `json:"offset"`
	Rev    uint64 `json:"rev"`
}

// SurfaceState is what the client reports about its surface with every signal.
// Rev echoes the revision of the last command the client applied.
type SurfaceState struct {
	Text      string        `json:"text"`
	Selection editbuf.Range `json:"selection"`
	Focused   bool          `json:"focused"`
	Rev       uint64        `json:"rev"`
}

// Publisher broadcasts events. *sse.Broker satisfies it.
type Publisher interface {
	Publish(sse.Event)
}

// RemoteSurface mirrors a surface rendered by an HTTP client. The client state
// is applied before each signal; every mutation the synchronizer makes is
// recorded as a Command and broadcast as a surface.command event.
type RemoteSurface struct {
	mu      sync.Mutex
	state   SurfaceState
	pending []Command
	pub     Publisher
}

// NewRemoteSurface returns an empty, unfocused remote surface.
func NewRemoteSurface(pub Publisher) *RemoteSurface {
	return &RemoteSurface{pub: pub}
}

// Apply replaces the mirrored state with the client report. A report whose
// revision differs from the current one predates a set_text the client has
// not applied yet and is refused with ErrStaleSurface.
func (s *RemoteSurface) Apply(st SurfaceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Rev != s.state.Rev {
		return ErrStaleSurface
	}
	n := len([]rune(st.Text))
	if st.Selection.Start > n {
		st.Selection.Start = n
	}
	if st.Selection.End > n {
		st.Selection.End = n
	}
	if st.Selection.Start < 0 {
		st.Selection.Start = 0
	}
	if st.Selection.End < 0 {
		st.Selection.End = 0
	}
	s.state = st
	return nil
}

// State returns the mirrored state.
func (s *RemoteSurface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Drain returns and clears the commands recorded since the last call.
func (s *RemoteSurface) Drain() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *RemoteSurface) emit(c Command) {
	c.Rev = s.state.Rev
	s.pending = append(s.pending, c)
	if s.pub != nil {
		s.pub.Publish(sse.Event{Type: sse.TypeSurfaceCommand, Data: c})
	}
}

func (s *RemoteSurface) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Text
}

func (s *RemoteSurface) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Text = text
	s.state.Rev++
	n := len([]rune(text))
	s.state.Selection = editbuf.Range{Start: min(s.state.Selection.Start, n), End: min(s.state.Selection.End, n)}
	s.emit(Command{Op: OpSetText, Text: text})
}

func (s *RemoteSurface) Selection() editbuf.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Selection
}

func (s *RemoteSurface) SetCaret(a editbuf.Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := a.Resolve(len([]rune(s.state.Text)))
	s.state.Selection = editbuf.Range{Start: off, End: off}
	s.emit(Command{Op: OpSetCaret, Offset: off})
}

func (s *RemoteSurface) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Focused = true
	s.emit(Command{Op: OpFocus})
}

func (s *RemoteSurface) Focused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Focused
}

func (s *RemoteSurface) RevealCaret() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(Command{Op: OpRevealCaret, Offset: s.state.Selection.End})
}

var _ editbuf.Surface = (*RemoteSurface)(nil)
