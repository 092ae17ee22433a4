package editbuf

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// TabRun is inserted in place of a tab: two ideographic spaces.
const TabRun = "\u3000\u3000"

// State is the synchronizer state.
type State uint8

const (
	StateIdle State = iota
	StateComposing
	StateProgrammatic
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateProgrammatic:
		return "programmatic"
	}
	return "unknown"
}

var lineBreaks = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
)

// Normalize rewrites surface line breaks to '\n'.
func Normalize(text string) string {
	return lineBreaks.Replace(text)
}

// CommitFunc receives the canonical content after every commit.
type CommitFunc func(content string)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLineBreak makes Enter insert marker instead of taking the surface
// default. An empty marker restores the default handling.
func WithLineBreak(marker string) Option {
	return func(s *Synchronizer) {
		s.lineBreak = marker
	}
}

// WithLogger sets the debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithTransitionHook calls fn on every state change.
func WithTransitionHook(fn func(from, to State)) Option {
	return func(s *Synchronizer) {
		s.onTransition = fn
	}
}

// Synchronizer mediates between one Surface and the canonical content.
// It is not safe for concurrent use; callers serialize surface events.
type Synchronizer struct {
	surface Surface
	commit  CommitFunc

	content   string
	state     State
	lineBreak string
	absorbed  int // input signals swallowed by the current composition

	logger       *slog.Logger
	onTransition func(from, to State)
}

// New binds a synchronizer to surface. commit may be nil.
func New(surface Surface, commit CommitFunc, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		surface: surface,
		commit:  commit,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Synchronizer) State() State { return s.state }

// Content returns the canonical content.
func (s *Synchronizer) Content() string { return s.content }

// SetLineBreak changes the Enter override; see WithLineBreak.
func (s *Synchronizer) SetLineBreak(marker string) { s.lineBreak = marker }

// Mount performs the first mount: the content is pushed, the surface takes
// focus and the caret goes to the start.
func (s *Synchronizer) Mount(content string) {
	s.programmatic(content, func() {
		s.surface.Focus()
		s.surface.SetCaret(Start())
	})
}

// Load replaces the canonical content for a reason other than typing, such
// as opening or creating a document. The caret goes to the start.
func (s *Synchronizer) Load(content string) {
	s.programmatic(content, func() {
		s.surface.SetCaret(Start())
	})
}

// Remount re-applies the canonical content after a view change such as the
// writing direction. A focused surface keeps the caret at the end of the
// text, an unfocused one gets it at the start.
func (s *Synchronizer) Remount() {
	focused := s.surface.Focused()
	s.programmatic(s.content, func() {
		if focused {
			s.surface.SetCaret(End())
		} else {
			s.surface.SetCaret(Start())
		}
	})
}

func (s *Synchronizer) programmatic(content string, restoreCaret func()) {
	same := Normalize(s.surface.Text()) == content
	if s.state == StateComposing {
		if same {
			// Leave the composition session alone.
			s.content = content
			return
		}
		s.logger.Debug("editbuf: composition abandoned by programmatic update",
			slog.Int("absorbed", s.absorbed))
	}

	s.setState(StateProgrammatic)
	s.content = content
	if !same {
		s.surface.SetText(content)
	}
	restoreCaret()
	s.setState(StateIdle)
}

// Handle dispatches a surface signal. It reports whether the signal was
// consumed, in which case the surface must skip its default behaviour.
func (s *Synchronizer) Handle(sig Signal) bool {
	switch sig.Kind {
	case SignalInput:
		s.InputMutated()
	case SignalCompositionStart:
		s.CompositionStarted()
	case SignalCompositionEnd:
		s.CompositionEnded()
	case SignalKey:
		return s.KeyPressed(sig.Key)
	case SignalPointer:
		s.PointerActivated()
	}
	return false
}

// InputMutated handles a change of the surface text.
func (s *Synchronizer) InputMutated() {
	switch s.state {
	case StateComposing:
		s.absorbed++
		return
	case StateProgrammatic:
		// Echo of our own SetText.
		return
	}
	s.commitSurface()
}

// CompositionStarted enters the composing state.
func (s *Synchronizer) CompositionStarted() {
	if s.state != StateIdle {
		return
	}
	s.absorbed = 0
	s.setState(StateComposing)
}

// CompositionEnded leaves the composing state and commits the surface once.
func (s *Synchronizer) CompositionEnded() {
	if s.state == StateProgrammatic {
		return
	}
	if s.state == StateComposing {
		s.logger.Debug("editbuf: composition ended", slog.Int("absorbed", s.absorbed))
		s.setState(StateIdle)
	}
	s.commitSurface()
}

// KeyPressed applies the Tab and Enter overrides. It reports whether the key
// was consumed.
func (s *Synchronizer) KeyPressed(k Key) bool {
	if s.state != StateIdle {
		return false
	}
	switch k {
	case KeyTab:
		s.insert(TabRun)
		return true
	case KeyEnter:
		if s.lineBreak == "" {
			return false
		}
		s.insert(s.lineBreak)
		return true
	}
	return false
}

// PointerActivated pins the caret to the start of an empty surface.
func (s *Synchronizer) PointerActivated() {
	if s.surface.Text() == "" {
		s.surface.SetCaret(Start())
	}
}

func (s *Synchronizer) insert(run string) {
	text := []rune(s.surface.Text())
	sel := s.surface.Selection().normalize(len(text))

	var sb strings.Builder
	sb.WriteString(string(text[:sel.Start]))
	sb.WriteString(run)
	sb.WriteString(string(text[sel.End:]))

	s.setState(StateProgrammatic)
	s.surface.SetText(sb.String())
	s.surface.SetCaret(At(sel.Start + utf8.RuneCountInString(run)))
	s.surface.RevealCaret()
	s.setState(StateIdle)

	s.commitSurface()
}

func (s *Synchronizer) commitSurface() {
	s.content = Normalize(s.surface.Text())
	if s.commit != nil {
		s.commit(s.content)
	}
}

func (s *Synchronizer) setState(next State) {
	if next == s.state {
		return
	}
	prev := s.state
	s.state = next
	if s.onTransition != nil {
		s.onTransition(prev, next)
	}
}
