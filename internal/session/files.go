package session

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/vertext/internal/apperr"
	"github.com/starford/vertext/internal/checksum"
	"github.com/starford/vertext/internal/editbuf"
	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/metrics"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/sse"
	"github.com/starford/vertext/internal/storage"
)

// untitledName is the suggested file name of a document with neither file
// name nor title.
const untitledName = "untitled"

var nameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\n", " ", "\r", " ")

// canonical returns the store's own spelling of handle when it has one, so
// watcher reports can be matched against SourcePath.
func (s *Session) canonical(handle string) string {
	r, ok := s.store.(interface{ Rel(string) (string, error) })
	if !ok {
		return handle
	}
	if rel, err := r.Rel(handle); err == nil {
		return rel
	}
	return handle
}

// NewDocument replaces the active document with an empty untitled one.
// A dirty document is only dropped when discard is set.
func (s *Session) NewDocument(discard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Dirty && !discard {
		return apperr.ErrUnsaved
	}
	s.replace(models.NewDocument(s.now()), "", s.saveFormat)
	s.logger.Info("session: new document", slog.String("id", s.doc.Meta.ID))
	s.notify.Publish(sse.Event{Type: sse.TypeDocumentOpened, Data: s.snapshot()})
	return nil
}

// Open asks picker for a document and makes it the active one. The format
// follows the extension: .md is frontmatter, anything else the tag line.
// On cancellation or failure the active document is untouched.
func (s *Session) Open(ctx context.Context, picker storage.Picker, discard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Dirty && !discard {
		return apperr.ErrUnsaved
	}

	handle, ok, err := picker.PickOpen(ctx)
	if err != nil {
		return s.fail(apperr.OpOpen, "", err)
	}
	if !ok {
		s.metrics.RecordFileOperation(apperr.OpOpen, metrics.StatusCancelled)
		return apperr.ErrCancelled
	}
	return s.load(ctx, handle)
}

// OpenPath opens handle directly, without a picker.
func (s *Session) OpenPath(ctx context.Context, handle string, discard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.Dirty && !discard {
		return apperr.ErrUnsaved
	}
	return s.load(ctx, handle)
}

func (s *Session) load(ctx context.Context, handle string) error {
	raw, err := s.store.Read(ctx, handle)
	if err != nil {
		return s.fail(apperr.OpOpen, handle, err)
	}
	handle = s.canonical(handle)

	f := format.Detect(handle, format.Tagged)
	res := s.codec.Decode(raw, f)
	stem := fileStem(handle)
	meta := res.Meta
	meta.FillMissing(stem, s.now())

	s.replace(models.Document{
		Meta:       meta,
		Content:    editbuf.Normalize(res.Content),
		SourcePath: handle,
		FileName:   stem,
	}, raw, f)

	s.logger.Info("session: opened",
		slog.String("path", handle),
		slog.Int("words", s.doc.Meta.WordCount))
	s.metrics.RecordFileOperation(apperr.OpOpen, metrics.StatusOK)
	s.recordRecent(ctx)
	s.notify.Publish(sse.Event{Type: sse.TypeDocumentOpened, Data: s.snapshot()})
	return nil
}

// Save writes the document back to its source path, in the format the path
// implies: .txt is the tag line, anything else frontmatter. A document that
// was never saved goes through SaveAs.
func (s *Session) Save(ctx context.Context, picker storage.Picker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.SourcePath == "" {
		return s.saveAs(ctx, picker, s.saveFormat)
	}
	f := format.Frontmatter
	if strings.HasSuffix(strings.ToLower(s.doc.SourcePath), ".txt") {
		f = format.Tagged
	}
	return s.write(ctx, apperr.OpSave, s.doc.SourcePath, f)
}

// SaveAs asks picker for a destination, suggesting a name derived from the
// file name or title, and writes the document there. A chosen name without
// extension gets the one of f; a chosen .txt or .md name picks its own format.
func (s *Session) SaveAs(ctx context.Context, picker storage.Picker, f format.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAs(ctx, picker, f)
}

func (s *Session) saveAs(ctx context.Context, picker storage.Picker, f format.Format) error {
	handle, ok, err := picker.PickSave(ctx, SuggestedName(s.doc, f))
	if err != nil {
		return s.fail(apperr.OpSaveAs, "", err)
	}
	if !ok {
		s.metrics.RecordFileOperation(apperr.OpSaveAs, metrics.StatusCancelled)
		return apperr.ErrCancelled
	}
	if path.Ext(handle) == "" {
		handle += f.Ext()
	}
	return s.write(ctx, apperr.OpSaveAs, handle, format.Detect(handle, f))
}

func (s *Session) write(ctx context.Context, op, handle string, f format.Format) error {
	text, err := s.codec.Serialize(s.doc, f)
	if err != nil {
		return s.fail(op, handle, err)
	}
	canonical, err := s.store.Write(ctx, handle, text)
	if err != nil {
		return s.fail(op, handle, err)
	}

	s.doc.SourcePath = canonical
	s.doc.FileName = fileStem(canonical)
	s.doc.Dirty = false
	s.savedSum = checksum.Text(text)
	s.diskSum = ""
	s.setDocFormat(f)

	s.logger.Info("session: saved",
		slog.String("path", canonical),
		slog.String("format", f.String()),
		slog.Int("words", s.doc.Meta.WordCount))
	s.metrics.RecordFileOperation(op, metrics.StatusOK)
	s.recordRecent(ctx)
	s.notify.Publish(sse.Event{Type: sse.TypeDocumentSaved, Data: map[string]any{
		"path":   canonical,
		"format": f.String(),
	}})
	return nil
}

// fail wraps a storage failure; context cancellation becomes ErrCancelled.
func (s *Session) fail(op, handle string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, apperr.ErrCancelled) {
		s.metrics.RecordFileOperation(op, metrics.StatusCancelled)
		return apperr.ErrCancelled
	}
	s.metrics.RecordFileOperation(op, metrics.StatusError)
	s.logger.Error("session: storage failure",
		slog.String("op", op),
		slog.String("path", handle),
		slog.String("error", err.Error()))
	return &apperr.StorageError{Op: op, Handle: handle, Err: err}
}

func (s *Session) recordRecent(ctx context.Context) {
	if s.prefs == nil {
		return
	}
	err := s.prefs.AddRecent(ctx, models.RecentDocument{
		Path:      s.doc.SourcePath,
		Title:     s.doc.Meta.Title,
		WordCount: s.doc.Meta.WordCount,
		UpdatedAt: s.now(),
	})
	if err != nil {
		s.logger.Warn("session: record recent failed",
			slog.String("path", s.doc.SourcePath),
			slog.String("error", err.Error()))
	}
}

// Recent lists recently opened or saved documents, newest first.
func (s *Session) Recent(ctx context.Context, limit int) ([]models.RecentDocument, error) {
	if s.prefs == nil {
		return nil, nil
	}
	return s.prefs.ListRecent(ctx, limit)
}

// SuggestedName is the save-dialog default for doc in format f: the file
// name, else the title, else "untitled", plus the format extension.
func SuggestedName(doc models.Document, f format.Format) string {
	name := strings.TrimSpace(nameReplacer.Replace(doc.FileName))
	if name == "" {
		name = strings.TrimSpace(nameReplacer.Replace(doc.Meta.Title))
	}
	if name == "" {
		name = untitledName
	}
	return name + f.Ext()
}

// fileStem is the base name of handle without a document extension.
func fileStem(handle string) string {
	base := path.Base(strings.ReplaceAll(handle, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	switch strings.ToLower(path.Ext(base)) {
	case ".txt", ".md", ".markdown":
		base = base[:len(base)-len(path.Ext(base))]
	}
	return base
}
