package session

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vertext/internal/apperr"
	"github.com/starford/vertext/internal/sse"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// MetaPatch is a partial metadata update. Nil fields are left as they are.
type MetaPatch struct {
	ID          *string   `json:"id,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Date        *string   `json:"date,omitempty"`
	Description *string   `json:"description,omitempty"`
	Categories  *[]string `json:"categories,omitempty"`
	Summary     *string   `json:"summary,omitempty"`
	Slug        *string   `json:"slug,omitempty"`
}

// Validate implements validation.Validatable.
func (p MetaPatch) Validate() error {
	return validation.Errors{
		"id":         validation.Validate(deref(p.ID), validation.Length(0, 64)),
		"title":      validation.Validate(deref(p.Title), validation.Length(0, 200)),
		"date":       validation.Validate(deref(p.Date), validation.By(isDate)),
		"categories": validation.Validate(derefSlice(p.Categories), validation.Each(validation.Required, validation.Length(1, 64))),
		"slug":       validation.Validate(deref(p.Slug), validation.Match(slugRe)),
	}.Filter()
}

func isDate(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if _, err := time.Parse(layout, s); err == nil {
			return nil
		}
	}
	return errors.New("must be an RFC 3339 timestamp or a YYYY-MM-DD date")
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefSlice(p *[]string) []string {
	if p == nil {
		return nil
	}
	return *p
}

// UpdateMeta merges patch into the metadata. The document only turns dirty
// when a field actually changes.
func (s *Session) UpdateMeta(patch MetaPatch) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc.Meta
	next.Categories = slices.Clone(next.Categories)
	if patch.ID != nil {
		next.ID = *patch.ID
	}
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Categories != nil {
		next.Categories = slices.Clone(*patch.Categories)
		if len(next.Categories) == 0 {
			next.Categories = nil
		}
	}
	if patch.Summary != nil {
		next.Summary = *patch.Summary
	}
	if patch.Slug != nil {
		next.Slug = *patch.Slug
	}

	if next.Equal(s.doc.Meta) {
		return nil
	}
	s.doc.Meta = next
	s.markDirty()
	return nil
}

// SetFileName changes the suggested save name.
func (s *Session) SetFileName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = fileStem(name)
	if name == s.doc.FileName {
		return
	}
	s.doc.FileName = name
	s.markDirty()
}

func (s *Session) markDirty() {
	wasDirty := s.doc.Dirty
	s.doc.Dirty = true
	if !wasDirty {
		s.publishChanged()
	}
	s.notify.PublishStats(sse.Stats{WordCount: s.doc.Meta.WordCount, Dirty: true})
}
