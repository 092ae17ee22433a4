package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/vertext/internal/checksum"
)

// documentExts lists the file extensions List reports.
var documentExts = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the document directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// Rel converts a path under the root, absolute or relative, into a handle.
func (f *FS) Rel(abs string) (string, error) {
	p, err := f.safePath(abs)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(f.root, p)
	if err != nil {
		return "", fmt.Errorf("storage: rel: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

// safePath resolves a handle against the root and rejects any result that
// escapes it. Absolute paths are accepted when they lie under the root.
func (f *FS) safePath(handle string) (string, error) {
	if handle == "" {
		return "", fmt.Errorf("storage: empty handle")
	}
	cleaned := filepath.Clean(filepath.FromSlash(handle))
	joined := cleaned
	if !filepath.IsAbs(cleaned) {
		joined = filepath.Join(f.root, cleaned)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes root: %s", handle)
	}
	return abs, nil
}

// List walks the root and describes every document file, sorted by path.
func (f *FS) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != f.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !documentExts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, Entry{
			Path:      filepath.ToSlash(rel),
			Checksum:  checksum.Sum(data),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Read returns the text of a document file.
func (f *FS) Read(ctx context.Context, handle string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := f.safePath(handle)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("storage: read %s: %w", handle, err)
	}
	return string(data), nil
}

// Write atomically writes text: tmp file → fsync → rename.
func (f *FS) Write(ctx context.Context, handle, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	abs, err := f.safePath(handle)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".vertext-tmp-*")
	if err != nil {
		return "", fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.WriteString(text); err != nil {
		return "", fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("storage: rename: %w", err)
	}
	success = true

	rel, _ := filepath.Rel(f.root, abs)
	return filepath.ToSlash(rel), nil
}

var _ Provider = (*FS)(nil)
