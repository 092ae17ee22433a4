// Package session owns the one active document: its content, metadata,
// dirtiness, backing file and the synchronizer bound to the editing surface.
//
// Every entry point takes the session lock and runs to completion, so surface
// signals, metadata edits and file operations are applied in arrival order.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/starford/vertext/internal/checksum"
	"github.com/starford/vertext/internal/editbuf"
	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/metrics"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/prefs"
	"github.com/starford/vertext/internal/sse"
	"github.com/starford/vertext/internal/storage"
	"github.com/starford/vertext/internal/wordcount"
)

// Notifier receives document events. *sse.Broker satisfies it.
type Notifier interface {
	Publish(sse.Event)
	PublishStats(sse.Stats)
}

type nopNotifier struct{}

func (nopNotifier) Publish(sse.Event)      {}
func (nopNotifier) PublishStats(sse.Stats) {}

// Settings are the process-wide view preferences.
type Settings struct {
	Direction models.Direction `json:"direction"`
	Theme     models.Theme     `json:"theme"`
}

// Session is the single owner of the active document.
type Session struct {
	mu sync.Mutex

	doc      models.Document
	savedSum string // checksum of the text last read from or written to SourcePath
	diskSum  string // checksum of the last external edit reported

	surface editbuf.Surface
	syncer  *editbuf.Synchronizer
	codec   *format.Codec
	store   storage.Provider
	prefs   prefs.Store

	settings   Settings
	saveFormat format.Format
	docFormat  format.Format // format the active document was read or last written in
	lineBreak  string        // Enter marker for frontmatter documents

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
	notify  Notifier
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock used for ids and dates.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics records session activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithPrefs persists settings and recent documents in p.
func WithPrefs(p prefs.Store) Option {
	return func(s *Session) {
		s.prefs = p
	}
}

// WithNotifier publishes document events to n.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		s.notify = n
	}
}

// WithSaveFormat sets the format used by SaveAs when the chosen name has no
// recognised extension.
func WithSaveFormat(f format.Format) Option {
	return func(s *Session) {
		s.saveFormat = f
	}
}

// WithDefaults sets the settings used when no preference is stored.
func WithDefaults(d models.Direction, t models.Theme) Option {
	return func(s *Session) {
		s.settings = Settings{Direction: d, Theme: t}
	}
}

// WithLineBreak sets the marker Enter inserts in frontmatter documents.
// An empty marker leaves Enter to the surface.
func WithLineBreak(marker string) Option {
	return func(s *Session) {
		s.lineBreak = marker
	}
}

// New creates a session holding a fresh untitled document bound to surface.
// Call Mount before dispatching surface signals.
func New(surface editbuf.Surface, store storage.Provider, opts ...Option) *Session {
	s := &Session{
		surface:    surface,
		store:      store,
		saveFormat: format.Frontmatter,
		lineBreak:  "\n",
		settings:   Settings{Direction: models.DirectionRTL, Theme: models.ThemeLight},
		now:        time.Now,
		logger:     slog.Default(),
		notify:     nopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.codec = format.New(
		format.WithClock(s.now),
		format.WithLogger(s.logger),
		format.WithFallbackHook(func(format.Format, error) {
			s.metrics.RecordFrontmatterFallback()
		}),
	)
	s.docFormat = s.saveFormat
	s.syncer = editbuf.New(surface, s.onCommit,
		editbuf.WithLineBreak(s.markerFor(s.docFormat)),
		editbuf.WithLogger(s.logger),
		editbuf.WithTransitionHook(func(from, to editbuf.State) {
			if from == editbuf.StateComposing && to == editbuf.StateIdle {
				s.metrics.RecordComposition()
			}
		}),
	)
	s.doc = models.NewDocument(s.now())
	return s
}

// Mount loads stored settings and shows the document on the surface.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs != nil {
		d, err := s.prefs.Direction(ctx, s.settings.Direction)
		if err != nil {
			return err
		}
		t, err := s.prefs.Theme(ctx, s.settings.Theme)
		if err != nil {
			return err
		}
		s.settings = Settings{Direction: d, Theme: t}
	}
	s.syncer.Mount(s.doc.Content)
	return nil
}

// Codec returns the format codec the session reads and writes with.
func (s *Session) Codec() *format.Codec { return s.codec }

// Snapshot returns a copy of the active document.
func (s *Session) Snapshot() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() models.Document {
	doc := s.doc
	doc.Meta.Categories = slices.Clone(doc.Meta.Categories)
	return doc
}

// Format returns the format the active document was read or last written in.
func (s *Session) Format() format.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docFormat
}

// State returns the synchronizer state.
func (s *Session) State() editbuf.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncer.State()
}

// Dispatch forwards a surface signal to the synchronizer and reports whether
// the surface must skip its default behaviour.
func (s *Session) Dispatch(sig editbuf.Signal) bool {
	return s.DispatchAfter(nil, sig)
}

// DispatchAfter runs prepare and dispatches sig under one lock, so a surface
// snapshot delivered with the signal cannot interleave with another one.
func (s *Session) DispatchAfter(prepare func(), sig editbuf.Signal) bool {
	handled, _ := s.DispatchChecked(func() error {
		if prepare != nil {
			prepare()
		}
		return nil
	}, sig)
	return handled
}

// DispatchChecked is DispatchAfter with a prepare step that may refuse the
// signal. When prepare fails, sig is dropped and the error returned.
func (s *Session) DispatchChecked(prepare func() error, sig editbuf.Signal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prepare != nil {
		if err := prepare(); err != nil {
			return false, err
		}
	}
	return s.syncer.Handle(sig), nil
}

// onCommit runs under s.mu, called back by the synchronizer.
func (s *Session) onCommit(content string) {
	if content == s.doc.Content {
		return
	}
	wasDirty := s.doc.Dirty
	s.doc.Content = content
	s.doc.Dirty = true
	s.doc.Meta.WordCount = wordcount.Count(content)

	s.metrics.RecordCommit(s.doc.Meta.WordCount)
	s.notify.PublishStats(sse.Stats{WordCount: s.doc.Meta.WordCount, Dirty: true})
	if !wasDirty {
		s.publishChanged()
	}
}

func (s *Session) publishChanged() {
	s.notify.Publish(sse.Event{Type: sse.TypeDocumentChanged, Data: map[string]any{
		"dirty":     s.doc.Dirty,
		"file_name": s.doc.FileName,
	}})
}

// markerFor is the Enter marker for documents in format f. Tagged documents
// keep the surface's own line break.
func (s *Session) markerFor(f format.Format) string {
	if f == format.Frontmatter {
		return s.lineBreak
	}
	return ""
}

func (s *Session) setDocFormat(f format.Format) {
	s.docFormat = f
	s.syncer.SetLineBreak(s.markerFor(f))
}

// replace installs doc, held in format f, as the active document and pushes
// it to the surface. raw is the stored text doc was read from, empty for a
// new document.
func (s *Session) replace(doc models.Document, raw string, f format.Format) {
	doc.Meta.WordCount = wordcount.Count(doc.Content)
	s.doc = doc
	s.savedSum = ""
	if doc.SourcePath != "" {
		s.savedSum = checksum.Text(raw)
	}
	s.diskSum = ""
	s.setDocFormat(f)
	s.syncer.Load(doc.Content)
	s.metrics.SetWords(doc.Meta.WordCount)
}
