// Package watch reports changes to document files under a directory tree.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds passed to the callback.
const (
	KindChanged = "changed"
	KindRemoved = "removed"
)

// DefaultSettle is how long a path must stay quiet before it is reported.
const DefaultSettle = 150 * time.Millisecond

// EventCallback receives the kind and the slash-separated path relative to
// the watched root.
type EventCallback func(kind, path string)

// Watch starts an fsnotify watcher on root and reports document changes until
// ctx is cancelled. Bursts of events on one path are coalesced into a single
// callback once the path has been quiet for settle (DefaultSettle when zero).
//
// New directories created at runtime are added to the watch list. Hidden
// files, including the temp files of atomic writes, are ignored.
func Watch(ctx context.Context, root string, settle time.Duration, logger *slog.Logger, cb EventCallback) error {
	if settle <= 0 {
		settle = DefaultSettle
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(rel, kind string) {
		pending[rel] = kind
		if flushTimer == nil {
			flushTimer = time.NewTimer(settle)
			flushCh = flushTimer.C
		} else {
			if !flushTimer.Stop() {
				select {
				case <-flushTimer.C:
				default:
				}
			}
			flushTimer.Reset(settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for rel, kind := range pending {
				logger.Debug("watcher: report", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					continue
				}
			}

			if !IsDocument(absPath) {
				continue
			}

			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(rel, KindChanged)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				schedule(rel, KindRemoved)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// IsDocument reports whether path names a visible .md, .markdown or .txt file.
func IsDocument(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// addDirsRecursive adds root and all its visible subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
