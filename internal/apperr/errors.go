// Package apperr holds the error values shared across vertext packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrCancelled = errors.New("cancelled")
	ErrUnsaved   = errors.New("document has unsaved changes")
	ErrInvalid   = errors.New("invalid input")
)

// Storage operations.
const (
	OpOpen   = "open"
	OpSave   = "save"
	OpSaveAs = "save_as"
)

// StorageError reports a failed read or write at the storage boundary.
type StorageError struct {
	Op     string
	Handle string
	Err    error
}

func (e *StorageError) Error() string {
	if e.Handle == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Handle, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// UserMessage renders err as the single line shown to the user.
// Cancellation is not an error from the user's point of view and yields "".
func UserMessage(err error) string {
	if err == nil || errors.Is(err, ErrCancelled) {
		return ""
	}
	var se *StorageError
	if errors.As(err, &se) {
		switch se.Op {
		case OpOpen:
			return "開啟檔案失敗: " + se.Err.Error()
		case OpSaveAs:
			return "另存檔案失敗: " + se.Err.Error()
		default:
			return "儲存檔案失敗: " + se.Err.Error()
		}
	}
	switch {
	case errors.Is(err, ErrUnsaved):
		return "未儲存，請先儲存或放棄變更"
	case errors.Is(err, ErrInvalid):
		return "資料格式錯誤: " + err.Error()
	}
	return "未知錯誤: " + err.Error()
}
