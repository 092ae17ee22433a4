// Package storage defines where documents are read from and written to.
package storage

import (
	"context"
	"time"
)

// Provider reads and writes document text by handle. A handle is a path
// relative to the provider root.
type Provider interface {
	// Read returns the text stored under handle.
	Read(ctx context.Context, handle string) (string, error)
	// Write stores text under handle and returns the canonical handle.
	Write(ctx context.Context, handle, text string) (string, error)
}

// Picker asks the user for a handle. ok is false when the user cancelled.
type Picker interface {
	PickOpen(ctx context.Context) (handle string, ok bool, err error)
	PickSave(ctx context.Context, suggested string) (handle string, ok bool, err error)
}

// Entry describes one stored document.
type Entry struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Fixed is a Picker that answers with a preselected handle. An empty
// handle is a cancellation. PickSave falls back to the suggested name when
// AcceptSuggested is set and Handle is empty.
type Fixed struct {
	Handle          string
	AcceptSuggested bool
}

func (f Fixed) PickOpen(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return f.Handle, f.Handle != "", nil
}

func (f Fixed) PickSave(ctx context.Context, suggested string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if f.Handle == "" && f.AcceptSuggested {
		return suggested, suggested != "", nil
	}
	return f.Handle, f.Handle != "", nil
}

var _ Picker = Fixed{}
