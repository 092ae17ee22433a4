package session

import (
	"context"
	"log/slog"

	"github.com/starford/vertext/internal/checksum"
	"github.com/starford/vertext/internal/sse"
	"github.com/starford/vertext/internal/watch"
)

// ExternalChange inspects a watcher report. When it concerns the open
// document and the bytes on disk differ from what the session last read or
// wrote, a changed_on_disk event is published and true is returned. The
// document itself is never reloaded.
func (s *Session) ExternalChange(ctx context.Context, kind, handle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc.SourcePath == "" || handle != s.doc.SourcePath {
		return false
	}

	removed := kind == watch.KindRemoved
	sum := ""
	if !removed {
		raw, err := s.store.Read(ctx, handle)
		if err != nil {
			// Gone between the event and the read.
			removed = true
		} else {
			sum = checksum.Text(raw)
			if sum == s.savedSum || sum == s.diskSum {
				return false
			}
		}
	}
	if removed && s.diskSum == "removed" {
		return false
	}
	if removed {
		sum = "removed"
	}
	s.diskSum = sum

	s.logger.Warn("session: document changed on disk",
		slog.String("path", handle),
		slog.Bool("removed", removed))
	s.metrics.RecordExternalChange()
	s.notify.Publish(sse.Event{Type: sse.TypeChangedOnDisk, Data: map[string]any{
		"path":    handle,
		"removed": removed,
		"dirty":   s.doc.Dirty,
	}})
	return true
}
