package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/starford/vertext/internal/apperr"
	"github.com/starford/vertext/internal/editbuf"
	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/session"
	"github.com/starford/vertext/internal/storage"
)

const maxBodyBytes = 10 << 20

// Lister enumerates stored documents. *storage.FS satisfies it.
type Lister interface {
	List(ctx context.Context) ([]storage.Entry, error)
}

// Handler holds API route handlers.
type Handler struct {
	surfaceMu  sync.Mutex // pairs a signal with the commands it produced
	sess       *session.Session
	remote     *RemoteSurface
	lister     Lister
	saveFormat format.Format
}

// NewHandler creates a new Handler. lister may be nil.
func NewHandler(sess *session.Session, remote *RemoteSurface, lister Lister, saveFormat format.Format) *Handler {
	return &Handler{sess: sess, remote: remote, lister: lister, saveFormat: saveFormat}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// writeError maps a session error to a status and a user-facing message.
func writeError(w http.ResponseWriter, op string, err error) {
	msg := apperr.UserMessage(err)
	var se *apperr.StorageError
	switch {
	case errors.Is(err, apperr.ErrUnsaved):
		writeJSON(w, http.StatusConflict, errorBody(msg))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(msg))
	case errors.As(err, &se) && errors.Is(err, fs.ErrNotExist):
		writeJSON(w, http.StatusNotFound, errorBody(msg))
	case se != nil:
		writeJSON(w, http.StatusBadGateway, errorBody(msg))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// writeOperation answers a file operation, treating cancellation as success.
func (h *Handler) writeOperation(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, apperr.ErrCancelled) {
		writeJSON(w, http.StatusOK, OperationResponse{Cancelled: true, Document: h.sess.Snapshot()})
		return
	}
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Document: h.sess.Snapshot()})
}

// GetDocument handles GET /api/document.
//
//	@Summary		Get the active document and settings
//	@Tags			document
//	@Produce		json
//	@Success		200	{object}	DocumentResponse
//	@Security		BearerAuth
//	@Router			/document [get]
func (h *Handler) GetDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DocumentResponse{
		Document: h.sess.Snapshot(),
		Settings: h.sess.Settings(),
		Format:   h.sess.Format().String(),
		State:    h.sess.State().String(),
	})
}

// NewDocument handles POST /api/document/new.
//
//	@Summary		Replace the active document with an untitled one
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NewRequest	false	"Discard unsaved changes"
//	@Success		200		{object}	OperationResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document/new [post]
func (h *Handler) NewDocument(w http.ResponseWriter, r *http.Request) {
	var req NewRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	h.writeOperation(w, "new document", h.sess.NewDocument(req.Discard))
}

// OpenDocument handles POST /api/document/open.
//
//	@Summary		Open a stored document
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenRequest	true	"Document to open"
//	@Success		200		{object}	OperationResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document/open [post]
func (h *Handler) OpenDocument(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.sess.Open(r.Context(), storage.Fixed{Handle: req.Path}, req.Discard)
	h.writeOperation(w, "open", err)
}

// SaveDocument handles POST /api/document/save.
//
//	@Summary		Save the active document to its source path
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveRequest	false	"Destination when never saved"
//	@Success		200		{object}	OperationResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document/save [post]
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	err := h.sess.Save(r.Context(), storage.Fixed{Handle: req.Path, AcceptSuggested: req.AcceptSuggested})
	h.writeOperation(w, "save", err)
}

// SaveDocumentAs handles POST /api/document/save-as.
//
//	@Summary		Save the active document under a new name
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveRequest	true	"Destination and format"
//	@Success		200		{object}	OperationResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document/save-as [post]
func (h *Handler) SaveDocumentAs(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !decode(w, r, &req) {
		return
	}
	f := h.saveFormat
	if req.Format != "" {
		parsed, err := format.ParseName(req.Format)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		f = parsed
	}
	err := h.sess.SaveAs(r.Context(), storage.Fixed{Handle: req.Path, AcceptSuggested: req.AcceptSuggested}, f)
	h.writeOperation(w, "save as", err)
}

// SuggestedName handles GET /api/document/suggested-name.
//
//	@Summary		Suggested file name for save-as
//	@Tags			document
//	@Produce		json
//	@Param			format	query		string	false	"txt or md"
//	@Success		200		{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/document/suggested-name [get]
func (h *Handler) SuggestedName(w http.ResponseWriter, r *http.Request) {
	f := h.saveFormat
	if name := r.URL.Query().Get("format"); name != "" {
		parsed, err := format.ParseName(name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		f = parsed
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": session.SuggestedName(h.sess.Snapshot(), f)})
}

// UpdateMeta handles PATCH /api/document/meta.
//
//	@Summary		Merge a partial metadata update
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			body	body		session.MetaPatch	true	"Fields to change"
//	@Success		200		{object}	models.Document
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document/meta [patch]
func (h *Handler) UpdateMeta(w http.ResponseWriter, r *http.Request) {
	var patch session.MetaPatch
	if !decode(w, r, &patch) {
		return
	}
	if err := h.sess.UpdateMeta(patch); err != nil {
		writeError(w, "update meta", err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.Snapshot())
}

// SetFileName handles PUT /api/document/file-name.
//
//	@Summary		Change the suggested save name
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FileNameRequest	true	"New file name"
//	@Success		200		{object}	models.Document
//	@Security		BearerAuth
//	@Router			/document/file-name [put]
func (h *Handler) SetFileName(w http.ResponseWriter, r *http.Request) {
	var req FileNameRequest
	if !decode(w, r, &req) {
		return
	}
	h.sess.SetFileName(req.FileName)
	writeJSON(w, http.StatusOK, h.sess.Snapshot())
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Current view settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	session.Settings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Settings())
}

// UpdateSettings handles PUT /api/settings.
//
//	@Summary		Change direction and/or theme
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsRequest	true	"Settings to change"
//	@Success		200		{object}	session.Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Direction != "" {
		if err := h.sess.SetDirection(r.Context(), req.Direction); err != nil {
			writeError(w, "set direction", err)
			return
		}
	}
	if req.Theme != "" {
		if err := h.sess.SetTheme(r.Context(), req.Theme); err != nil {
			writeError(w, "set theme", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, h.sess.Settings())
}

// SurfaceEvent handles POST /api/surface/events.
//
//	@Summary		Deliver a surface signal with the client surface state
//	@Tags			surface
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignalRequest	true	"Signal and surface state"
//	@Success		200		{object}	SignalResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	StaleSurfaceResponse
//	@Security		BearerAuth
//	@Router			/surface/events [post]
func (h *Handler) SurfaceEvent(w http.ResponseWriter, r *http.Request) {
	var req SignalRequest
	if !decode(w, r, &req) {
		return
	}
	kind, ok := editbuf.ParseSignalKind(req.Kind)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown signal kind: "+req.Kind))
		return
	}

	h.surfaceMu.Lock()
	handled, err := h.sess.DispatchChecked(func() error {
		h.remote.Drain()
		return h.remote.Apply(req.State)
	}, editbuf.Signal{Kind: kind, Key: editbuf.Key(req.Key)})
	commands := h.remote.Drain()
	h.surfaceMu.Unlock()
	if errors.Is(err, ErrStaleSurface) {
		writeJSON(w, http.StatusConflict, StaleSurfaceResponse{
			Error:   err.Error(),
			Surface: h.remote.State(),
		})
		return
	}
	if err != nil {
		writeError(w, "surface event", err)
		return
	}
	if commands == nil {
		commands = []Command{}
	}

	doc := h.sess.Snapshot()
	writeJSON(w, http.StatusOK, SignalResponse{
		Handled:  handled,
		Commands: commands,
		Dirty:    doc.Dirty,
		Words:    doc.Meta.WordCount,
	})
}

// GetSurface handles GET /api/surface.
//
//	@Summary		The server-side mirror of the client surface
//	@Tags			surface
//	@Produce		json
//	@Success		200	{object}	SurfaceState
//	@Security		BearerAuth
//	@Router			/surface [get]
func (h *Handler) GetSurface(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.remote.State())
}

// ListRecent handles GET /api/recent.
//
//	@Summary		Recently opened or saved documents
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int	false	"Max entries"
//	@Success		200		{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/recent [get]
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.sess.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("list recent failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []models.RecentDocument{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent": items})
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		Documents under the storage root
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeJSON(w, http.StatusOK, map[string]any{"documents": []storage.Entry{}})
		return
	}
	items, err := h.lister.List(r.Context())
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if items == nil {
		items = []storage.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": items})
}
