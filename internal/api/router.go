package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Active document.
	r.Get("/document", h.GetDocument)
	r.Post("/document/new", h.NewDocument)
	r.Post("/document/open", h.OpenDocument)
	r.Post("/document/save", h.SaveDocument)
	r.Post("/document/save-as", h.SaveDocumentAs)
	r.Get("/document/suggested-name", h.SuggestedName)
	r.Patch("/document/meta", h.UpdateMeta)
	r.Put("/document/file-name", h.SetFileName)

	// View settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)

	// Remote editing surface.
	r.Get("/surface", h.GetSurface)
	r.Post("/surface/events", h.SurfaceEvent)

	// Stored documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/recent", h.ListRecent)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
