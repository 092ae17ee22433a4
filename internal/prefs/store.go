package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vertext/internal/models"
)

const (
	keyTheme     = "theme"
	keyDirection = "direction"
)

// Store is the preference and history interface consumed by the session.
type Store interface {
	Theme(ctx context.Context, fallback models.Theme) (models.Theme, error)
	SetTheme(ctx context.Context, t models.Theme) error
	Direction(ctx context.Context, fallback models.Direction) (models.Direction, error)
	SetDirection(ctx context.Context, d models.Direction) error
	AddRecent(ctx context.Context, r models.RecentDocument) error
	ListRecent(ctx context.Context, limit int) ([]models.RecentDocument, error)
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

func (db *DB) get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prefs: get %s: %w", key, err)
	}
	return v, true, nil
}

func (db *DB) set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("prefs: set %s: %w", key, err)
	}
	return nil
}

// Theme returns the stored theme. An unset or unknown value yields fallback.
func (db *DB) Theme(ctx context.Context, fallback models.Theme) (models.Theme, error) {
	v, ok, err := db.get(ctx, keyTheme)
	if err != nil || !ok {
		return fallback, err
	}
	if t := models.Theme(v); t.Valid() {
		return t, nil
	}
	return fallback, nil
}

// SetTheme stores the theme.
func (db *DB) SetTheme(ctx context.Context, t models.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("prefs: invalid theme %q", t)
	}
	return db.set(ctx, keyTheme, string(t))
}

// Direction returns the stored writing direction. An unset or unknown value
// yields fallback.
func (db *DB) Direction(ctx context.Context, fallback models.Direction) (models.Direction, error) {
	v, ok, err := db.get(ctx, keyDirection)
	if err != nil || !ok {
		return fallback, err
	}
	if d := models.Direction(v); d.Valid() {
		return d, nil
	}
	return fallback, nil
}

// SetDirection stores the writing direction.
func (db *DB) SetDirection(ctx context.Context, d models.Direction) error {
	if !d.Valid() {
		return fmt.Errorf("prefs: invalid direction %q", d)
	}
	return db.set(ctx, keyDirection, string(d))
}

// AddRecent records or refreshes a recent document.
func (db *DB) AddRecent(ctx context.Context, r models.RecentDocument) error {
	if r.Path == "" {
		return fmt.Errorf("prefs: add recent: empty path")
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO recent (path, title, word_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			word_count = excluded.word_count,
			updated_at = excluded.updated_at
	`, r.Path, r.Title, r.WordCount, r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("prefs: add recent: %w", err)
	}
	return nil
}

// ListRecent returns up to limit recent documents, newest first.
// A non-positive limit defaults to 20.
func (db *DB) ListRecent(ctx context.Context, limit int) ([]models.RecentDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, title, word_count, updated_at
		FROM recent
		ORDER BY updated_at DESC, path
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("prefs: list recent: %w", err)
	}
	defer rows.Close()

	var out []models.RecentDocument
	for rows.Next() {
		var r models.RecentDocument
		if err := rows.Scan(&r.Path, &r.Title, &r.WordCount, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRecent keeps only the keep newest recent entries.
func (db *DB) PruneRecent(ctx context.Context, keep int) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM recent WHERE path NOT IN (
			SELECT path FROM recent ORDER BY updated_at DESC, path LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("prefs: prune recent: %w", err)
	}
	return nil
}
