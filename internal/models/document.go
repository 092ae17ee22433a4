// Package models defines the domain types for vertext.
package models

import (
	"fmt"
	"slices"
	"time"
)

// UntitledTitle is the placeholder title of a document nobody named yet.
const UntitledTitle = "未命名"

// Meta is the structured metadata carried alongside a document body.
type Meta struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	WordCount   int      `json:"word_count"` // derived from Content, never persisted
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Slug        string   `json:"slug,omitempty"`
}

// Equal reports whether m and o carry the same persisted fields.
// WordCount is ignored and a nil category list equals an empty one.
func (m Meta) Equal(o Meta) bool {
	return m.ID == o.ID &&
		m.Title == o.Title &&
		m.Date == o.Date &&
		m.Description == o.Description &&
		m.Summary == o.Summary &&
		m.Slug == o.Slug &&
		slices.Equal(m.Categories, o.Categories)
}

// IsZero reports whether no persisted field is populated.
func (m Meta) IsZero() bool {
	return m.Equal(Meta{})
}

// Document is the one active document held by the editor.
type Document struct {
	Meta       Meta   `json:"meta"`
	Content    string `json:"content"`
	SourcePath string `json:"source_path,omitempty"` // empty for a document never saved
	FileName   string `json:"file_name,omitempty"`   // stem used as the suggested save name
	Dirty      bool   `json:"dirty"`
}

// NewDocument returns an empty, clean document stamped with now.
func NewDocument(now time.Time) Document {
	return Document{
		Meta: Meta{
			ID:    GenerateID(now),
			Title: UntitledTitle,
			Date:  now.Format(time.RFC3339),
		},
	}
}

// FillMissing completes metadata read from a file: a missing id is generated
// from now, a missing title falls back to stem and then UntitledTitle, a
// missing date is now.
func (m *Meta) FillMissing(stem string, now time.Time) {
	if m.ID == "" {
		m.ID = GenerateID(now)
	}
	if m.Title == "" {
		m.Title = stem
	}
	if m.Title == "" {
		m.Title = UntitledTitle
	}
	if m.Date == "" {
		m.Date = now.Format(time.RFC3339)
	}
}

// GenerateID derives a document id of the form YYYY-MMDD-HHMM.
func GenerateID(now time.Time) string {
	return fmt.Sprintf("%04d-%02d%02d-%02d%02d",
		now.Year(), int(now.Month()), now.Day(), now.Hour(), now.Minute())
}

// Direction is the writing direction reported to the rendering surface.
type Direction string

const (
	DirectionRTL Direction = "rtl"
	DirectionLTR Direction = "ltr"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionRTL || d == DirectionLTR
}

// Theme is the colour scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemePaper Theme = "paper"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemePaper:
		return true
	}
	return false
}

// RecentDocument is an entry of the recently opened or saved list.
type RecentDocument struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	WordCount int       `json:"word_count"`
	UpdatedAt time.Time `json:"updated_at"`
}
