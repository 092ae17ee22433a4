package api

import (
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/session"
)

// DocumentResponse is the active document with the current settings.
type DocumentResponse struct {
	Document models.Document  `json:"document"`
	Settings session.Settings `json:"settings"`
	Format   string           `json:"format" example:"md"`
	State    string           `json:"state" example:"idle"`
}

// NewRequest is the body of POST /document/new.
type NewRequest struct {
	Discard bool `json:"discard"`
}

// OpenRequest is the body of POST /document/open.
type OpenRequest struct {
	Path    string `json:"path" example:"poems/spring.txt"`
	Discard bool   `json:"discard"`
}

// SaveRequest is the body of POST /document/save and /document/save-as.
// An empty path with AcceptSuggested saves under the suggested name; an empty
// path without it is a cancellation.
type SaveRequest struct {
	Path            string `json:"path,omitempty" example:"poems/spring.md"`
	Format          string `json:"format,omitempty" example:"md"`
	AcceptSuggested bool   `json:"accept_suggested"`
}

// FileNameRequest is the body of PUT /document/file-name.
type FileNameRequest struct {
	FileName string `json:"file_name" validate:"required"`
}

// SettingsRequest is the body of PUT /settings. Empty fields are unchanged.
type SettingsRequest struct {
	Direction models.Direction `json:"direction,omitempty" example:"rtl"`
	Theme     models.Theme     `json:"theme,omitempty" example:"paper"`
}

// SignalRequest is the body of POST /surface/events.
type SignalRequest struct {
	Kind  string       `json:"kind" example:"input" validate:"required"`
	Key   string       `json:"key,omitempty" example:"Tab"`
	State SurfaceState `json:"state"`
}

// SignalResponse tells the client whether to suppress its default handling
// and which commands to apply to its surface.
type SignalResponse struct {
	Handled  bool      `json:"handled"`
	Commands []Command `json:"commands"`
	Dirty    bool      `json:"dirty"`
	Words    int       `json:"word_count"`
}

// OperationResponse reports a file operation outcome.
type OperationResponse struct {
	Cancelled bool            `json:"cancelled"`
	Document  models.Document `json:"document"`
}

// StaleSurfaceResponse answers a signal whose snapshot predates the latest
// set_text. The client resyncs from Surface and resends.
type StaleSurfaceResponse struct {
	Error   string       `json:"error"`
	Surface SurfaceState `json:"surface"`
}
