package session

import (
	"context"
	"fmt"

	"github.com/starford/vertext/internal/apperr"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/sse"
)

// Settings returns the current view preferences.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetDirection switches the writing direction and remounts the surface.
func (s *Session) SetDirection(ctx context.Context, d models.Direction) error {
	if !d.Valid() {
		return fmt.Errorf("%w: direction %q", apperr.ErrInvalid, d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.SetDirection(ctx, d); err != nil {
			return err
		}
	}
	changed := s.settings.Direction != d
	s.settings.Direction = d
	if changed {
		s.syncer.Remount()
	}
	s.notify.Publish(sse.Event{Type: sse.TypeSettingsUpdated, Data: s.settings})
	return nil
}

// SetTheme switches the colour scheme.
func (s *Session) SetTheme(ctx context.Context, t models.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("%w: theme %q", apperr.ErrInvalid, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs != nil {
		if err := s.prefs.SetTheme(ctx, t); err != nil {
			return err
		}
	}
	s.settings.Theme = t
	s.notify.Publish(sse.Event{Type: sse.TypeSettingsUpdated, Data: s.settings})
	return nil
}
